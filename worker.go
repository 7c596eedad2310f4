package conductor

import (
	"context"
	"fmt"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
)

// KeyTask is the Context key under which a nested graph receives its task.
const KeyTask = "task"

// AsWorker exposes the engine as a worker so graphs can be nested inside other graphs or
// delegation loops. The task is written under KeyTask. The worker returns the value under
// outputKey, or the whole final Context as a map when outputKey is empty.
func (e *Engine) AsWorker(outputKey string) ports.Worker {
	return ports.WorkerFunc(func(ctx context.Context, task string, c *domain.Context) (any, error) {
		initial := c.Clone()
		initial.Set(KeyTask, task)

		run, err := e.RunFrom(ctx, "", initial)
		if err != nil {
			return nil, fmt.Errorf("nested graph '%s': %w", e.Name, err)
		}
		if run.Status != domain.StatusSucceeded {
			return nil, fmt.Errorf("nested graph '%s' ended with status %s", e.Name, run.Status)
		}
		if outputKey == "" {
			return run.Context.Map(), nil
		}
		return run.Context.Value(outputKey), nil
	})
}

// AsWorker exposes the delegator as a worker; the task becomes the nested goal and the
// nested final answer is the result.
func (d *Delegator) AsWorker() ports.Worker {
	return ports.WorkerFunc(func(ctx context.Context, task string, c *domain.Context) (any, error) {
		run, err := d.RunWith(ctx, task, c)
		if err != nil {
			return nil, fmt.Errorf("nested delegation: %w", err)
		}
		if run.Status != domain.StatusSucceeded {
			return nil, fmt.Errorf("nested delegation ended with status %s", run.Status)
		}
		return run.Answer, nil
	})
}
