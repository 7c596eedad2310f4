package conductor

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/conductor/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// RunBatch executes independent graph runs concurrently, at most parallelism at a time
// (unbounded when parallelism <= 0). Runs are returned in input order. A failing run does not
// stop the others; the returned error joins every run error.
func (e *Engine) RunBatch(ctx context.Context, inputs []map[string]any, parallelism int) ([]*domain.Run, error) {
	runs := make([]*domain.Run, len(inputs))
	errs := make([]error, len(inputs))

	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, input := range inputs {
		g.Go(func() error {
			run, err := e.Run(ctx, input)
			runs[i] = run
			if err != nil {
				errs[i] = fmt.Errorf("batch item %d: %w", i, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return runs, errors.Join(errs...)
}
