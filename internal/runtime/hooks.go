package runtime

import (
	"context"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
)

func base(t domain.EventType, runID string) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now().UTC(), Type: t, RunID: runID}
}

func (c *core) emitStateEnter(ctx context.Context, run *domain.Run, state string) {
	if c.hooks.OnStateEnter != nil {
		c.hooks.OnStateEnter(ctx, &domain.StateEvent{EventBase: base(domain.EventStateEnter, run.ID), State: state})
	}
}

func (c *core) emitStateLeave(ctx context.Context, run *domain.Run, state string, delta domain.Update) {
	if c.hooks.OnStateLeave != nil {
		c.hooks.OnStateLeave(ctx, &domain.StateEvent{EventBase: base(domain.EventStateLeave, run.ID), State: state, Delta: delta})
	}
}

func (c *core) emitStepDone(ctx context.Context, run *domain.Run, state, step string, d time.Duration, failed bool) {
	if c.hooks.OnStepDone != nil {
		c.hooks.OnStepDone(ctx, &domain.StepEvent{
			EventBase: base(domain.EventStepDone, run.ID),
			State:     state,
			Step:      step,
			Duration:  d,
			IsError:   failed,
		})
	}
}

func (c *core) emitTransition(ctx context.Context, run *domain.Run, from, to string) {
	if c.hooks.OnTransition != nil {
		c.hooks.OnTransition(ctx, &domain.TransitionEvent{EventBase: base(domain.EventTransition, run.ID), From: from, To: to})
	}
}

func (c *core) emitDecision(ctx context.Context, run *domain.Run, round, attempt int, dec domain.Decision, failed bool) {
	if c.hooks.OnDecision != nil {
		c.hooks.OnDecision(ctx, &domain.DecisionEvent{
			EventBase: base(domain.EventDecision, run.ID),
			Round:     round,
			Decision:  dec,
			Attempt:   attempt,
			IsError:   failed,
		})
	}
}

func (c *core) emitWorkerCall(ctx context.Context, run *domain.Run, worker, task string) {
	if c.hooks.OnWorkerCall != nil {
		c.hooks.OnWorkerCall(ctx, &domain.WorkerEvent{EventBase: base(domain.EventWorkerCall, run.ID), Worker: worker, Task: task})
	}
}

func (c *core) emitWorkerReturn(ctx context.Context, run *domain.Run, worker, task string, out any, d time.Duration, failed bool) {
	if c.hooks.OnWorkerReturn != nil {
		c.hooks.OnWorkerReturn(ctx, &domain.WorkerEvent{
			EventBase: base(domain.EventWorkerReturn, run.ID),
			Worker:    worker,
			Task:      task,
			Output:    out,
			Duration:  d,
			IsError:   failed,
		})
	}
}

func (c *core) emitFeedback(ctx context.Context, run *domain.Run, position string, fb domain.Feedback) {
	if c.hooks.OnFeedback != nil {
		c.hooks.OnFeedback(ctx, &domain.FeedbackEvent{EventBase: base(domain.EventFeedback, run.ID), Position: position, Feedback: fb})
	}
}

func (c *core) emitRunFinish(ctx context.Context, run *domain.Run) {
	if c.hooks.OnRunFinish != nil {
		c.hooks.OnRunFinish(ctx, &domain.RunEvent{
			EventBase: base(domain.EventRunFinish, run.ID),
			Mode:      run.Mode,
			Status:    run.Status,
			Duration:  run.UpdatedAt.Sub(run.StartedAt),
		})
	}
}
