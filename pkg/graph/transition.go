package graph

import (
	"slices"

	"github.com/aretw0/conductor/pkg/domain"
)

// DecisionFunc selects the next state from a Context snapshot.
// It must be pure: data it depends on belongs in the Context.
type DecisionFunc func(c *domain.Context) string

// Transition is the rule selecting the next state after a state's steps complete.
// A static transition has a Target; a conditional one has Decide and a declared Allowed set.
type Transition struct {
	Target  string
	Decide  DecisionFunc
	Allowed []string
}

// Static builds a transition that always resolves to target.
func Static(target string) Transition {
	return Transition{Target: target}
}

// Conditional builds a transition driven by fn, constrained to the allowed names (END is always allowed).
func Conditional(fn DecisionFunc, allowed ...string) Transition {
	return Transition{Decide: fn, Allowed: allowed}
}

// IsConditional reports whether the transition is driven by a decision function.
func (t Transition) IsConditional() bool {
	return t.Decide != nil
}

// Targets lists every state the transition may resolve to.
func (t Transition) Targets() []string {
	if t.IsConditional() {
		return t.Allowed
	}
	if t.Target == "" {
		return nil
	}
	return []string{t.Target}
}

// Resolve determines the next state name for the given state.
// The decision function sees a snapshot so it cannot mutate the run Context.
func (t Transition) Resolve(from string, c *domain.Context) (string, error) {
	if !t.IsConditional() {
		return t.Target, nil
	}

	next := t.Decide(c.Clone())
	if next == domain.END || slices.Contains(t.Allowed, next) {
		return next, nil
	}
	return "", &domain.InvalidTransitionError{
		From:    from,
		To:      next,
		Allowed: t.Allowed,
	}
}
