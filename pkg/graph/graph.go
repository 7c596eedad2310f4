package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
)

// State is a named node of the execution graph.
type State struct {
	Name       string
	Steps      []Step
	Transition Transition
}

// Graph owns the state name -> State mapping and the entry point.
// A Graph is immutable once validated; engines only read it.
type Graph struct {
	Name   string
	Entry  string
	states map[string]*State
	order  []string
}

// New creates an empty graph.
func New(name string) *Graph {
	return &Graph{
		Name:   name,
		states: make(map[string]*State),
	}
}

// AddState registers a state with its steps. Registering the same name twice appends steps.
func (g *Graph) AddState(name string, steps ...Step) *State {
	if st, ok := g.states[name]; ok {
		st.Steps = append(st.Steps, steps...)
		return st
	}
	st := &State{Name: name, Steps: steps}
	g.states[name] = st
	g.order = append(g.order, name)
	if g.Entry == "" {
		g.Entry = name
	}
	return st
}

// Connect sets a static transition from one state to another.
func (g *Graph) Connect(from, to string) {
	g.AddState(from).Transition = Static(to)
}

// Branch sets a conditional transition.
func (g *Graph) Branch(from string, fn DecisionFunc, allowed ...string) {
	g.AddState(from).Transition = Conditional(fn, allowed...)
}

// State returns the registered state.
func (g *Graph) State(name string) (*State, bool) {
	st, ok := g.states[name]
	return st, ok
}

// States returns all states in registration order.
func (g *Graph) States() []*State {
	out := make([]*State, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.states[name])
	}
	return out
}

// ValidationError collects every structural problem found in a graph.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("found %d errors:\n- %s", len(e.Problems), strings.Join(e.Problems, "\n- "))
}

func (e *ValidationError) Is(target error) bool { return target == domain.ErrInvalidGraph }

// Validate checks the graph before any run: the entry exists, END is not registered,
// every state has a transition and every target or allow-set member is registered or END.
func (g *Graph) Validate() error {
	var problems []string

	if g.Entry == "" {
		problems = append(problems, "graph has no entry state")
	} else if _, ok := g.states[g.Entry]; !ok {
		problems = append(problems, fmt.Sprintf("entry state '%s' is not registered", g.Entry))
	}

	for _, name := range g.order {
		st := g.states[name]
		if name == domain.END {
			problems = append(problems, fmt.Sprintf("state name '%s' is reserved", domain.END))
			continue
		}

		targets := st.Transition.Targets()
		if len(targets) == 0 {
			problems = append(problems, fmt.Sprintf("state '%s' has no transition", name))
			continue
		}
		for _, target := range targets {
			if target == domain.END {
				continue
			}
			if _, ok := g.states[target]; !ok {
				problems = append(problems, fmt.Sprintf("state '%s' references unknown state '%s'", name, target))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Unreachable returns the states that cannot be reached from the entry, sorted by name.
func (g *Graph) Unreachable() []string {
	visited := make(map[string]bool)
	queue := []string{g.Entry}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true

		st, ok := g.states[current]
		if !ok {
			continue
		}
		for _, target := range st.Transition.Targets() {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	var out []string
	for _, name := range g.order {
		if !visited[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
