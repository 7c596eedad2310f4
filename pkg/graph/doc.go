/*
Package graph describes the directed graph driven by the graph engine.

A Graph maps state names to States. Each State owns ordered Steps and exactly one Transition.
Transitions are either static (a fixed target) or conditional (a pure DecisionFunc constrained to a
declared allow-set). The reserved name domain.END terminates a run.

Graphs are validated before they run: every static target and allow-set member must name a
registered state or END.
*/
package graph
