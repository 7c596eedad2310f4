package runtime

import (
	"context"

	"github.com/aretw0/conductor/pkg/domain"
)

// checkpoint saves the run when a store is configured. Persistence failures are logged, not fatal.
func (c *core) checkpoint(ctx context.Context, run *domain.Run) {
	run.Touch()
	if c.store == nil {
		return
	}
	if err := c.store.Save(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Error("Failed to checkpoint run", "run_id", run.ID, "error", err)
	}
}

// finish moves the run to a terminal status, persists it and reports it.
// The run is always returned so callers keep the accumulated Context and transcript.
func (c *core) finish(ctx context.Context, run *domain.Run, status domain.RunStatus, err error) (*domain.Run, error) {
	run.Status = status
	if err != nil && status == domain.StatusFailed {
		run.Error = err.Error()
	}
	c.checkpoint(ctx, run)
	c.emitRunFinish(ctx, run)

	attrs := []any{"run_id", run.ID, "mode", run.Mode, "status", run.Status, "steps", run.Steps}
	switch status {
	case domain.StatusFailed:
		c.logger.Error("Run failed", append(attrs, "error", err)...)
	case domain.StatusCancelled:
		c.logger.Warn("Run cancelled", attrs...)
	default:
		c.logger.Info("Run finished", attrs...)
	}
	return run, err
}

// park stops the loop at the gate. The run can be resumed with new feedback.
func (c *core) park(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	run.Status = domain.StatusAwaitingInput
	c.checkpoint(ctx, run)
	return run, nil
}
