package runtime

import (
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/graph"
)

// validateContext checks the keys a step declares as required before it runs.
func validateContext(state string, step graph.Step, c *domain.Context) error {
	r, ok := step.(graph.Requirer)
	if !ok {
		return nil
	}

	var missing []string
	for _, key := range r.Requires() {
		if !c.Has(key) {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return &domain.MissingContextError{
			State:       state,
			Step:        step.Name(),
			MissingKeys: missing,
		}
	}
	return nil
}
