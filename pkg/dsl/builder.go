package dsl

import (
	"fmt"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/graph"
	"github.com/aretw0/conductor/pkg/ports"
)

// Builder manages the graph construction.
type Builder struct {
	graph  *graph.Graph
	states map[string]*StateBuilder
	errs   []error
}

// New creates a new graph builder.
func New(name string) *Builder {
	return &Builder{
		graph:  graph.New(name),
		states: make(map[string]*StateBuilder),
	}
}

// Add creates a new state in the graph. The first state added is the entry.
// If the state already exists, it returns the existing builder.
func (b *Builder) Add(name string) *StateBuilder {
	if sb, ok := b.states[name]; ok {
		return sb
	}
	b.graph.AddState(name)
	sb := &StateBuilder{name: name, builder: b}
	b.states[name] = sb
	return sb
}

// Entry overrides the entry state.
func (b *Builder) Entry(name string) *Builder {
	b.graph.Entry = name
	return b
}

// Build validates and returns the graph.
func (b *Builder) Build() (*graph.Graph, error) {
	if len(b.errs) > 0 {
		problems := make([]string, 0, len(b.errs))
		for _, err := range b.errs {
			problems = append(problems, err.Error())
		}
		return nil, &graph.ValidationError{Problems: problems}
	}
	if err := b.graph.Validate(); err != nil {
		return nil, err
	}
	return b.graph, nil
}

// MustBuild is Build for static graphs known to be valid; it panics otherwise.
func (b *Builder) MustBuild() *graph.Graph {
	g, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("dsl: %v", err))
	}
	return g
}

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	name       string
	builder    *Builder
	transition bool
}

func (s *StateBuilder) state() *graph.State {
	st, _ := s.builder.graph.State(s.name)
	return st
}

// Do appends steps, executed in the order given.
func (s *StateBuilder) Do(steps ...graph.Step) *StateBuilder {
	s.state().Steps = append(s.state().Steps, steps...)
	return s
}

// Func appends a function step that requires the given Context keys.
func (s *StateBuilder) Func(name string, fn graph.StepFunc, requires ...string) *StateBuilder {
	return s.Do(graph.Func(name, fn, requires...))
}

// Call appends a worker step. The task template interpolates {{key}} from the Context unless
// graph.WithInterpolator says otherwise.
func (s *StateBuilder) Call(name string, worker ports.Worker, task, saveTo string, opts ...graph.WorkerOption) *StateBuilder {
	return s.Do(graph.WorkerStep(name, worker, task, saveTo, opts...))
}

// Go adds an unconditional transition to the target state.
func (s *StateBuilder) Go(target string) *StateBuilder {
	return s.setTransition(graph.Static(target))
}

// Branch adds a conditional transition constrained to allowed (END is always allowed).
func (s *StateBuilder) Branch(fn graph.DecisionFunc, allowed ...string) *StateBuilder {
	return s.setTransition(graph.Conditional(fn, allowed...))
}

// End marks the state as the last one: it transitions to END.
func (s *StateBuilder) End() *StateBuilder {
	return s.Go(domain.END)
}

func (s *StateBuilder) setTransition(t graph.Transition) *StateBuilder {
	if s.transition {
		s.builder.errs = append(s.builder.errs, fmt.Errorf("state '%s' already has a transition", s.name))
		return s
	}
	s.transition = true
	s.state().Transition = t
	return s
}

// Add continues the chain with another state.
func (s *StateBuilder) Add(name string) *StateBuilder {
	return s.builder.Add(name)
}

// Build validates and returns the graph.
func (s *StateBuilder) Build() (*graph.Graph, error) {
	return s.builder.Build()
}

// MustBuild panics when the graph is invalid.
func (s *StateBuilder) MustBuild() *graph.Graph {
	return s.builder.MustBuild()
}
