package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/conductor/pkg/domain"
)

// LogHooks returns lifecycle hooks that write structured records to logger.
// Run outcomes and transitions log at Info, the rest at Debug.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_enter", "run_id", e.RunID, "state", e.State)
		},
		OnStateLeave: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_leave", "run_id", e.RunID, "state", e.State, "delta_keys", len(e.Delta))
		},
		OnStepDone: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_done",
				"run_id", e.RunID,
				"state", e.State,
				"step", e.Step,
				"duration", e.Duration,
				"is_error", e.IsError,
			)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "transition", "run_id", e.RunID, "from", e.From, "to", e.To)
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			logger.InfoContext(ctx, "decision",
				"run_id", e.RunID,
				"round", e.Round,
				"attempt", e.Attempt,
				"decision", e.Decision.String(),
				"is_error", e.IsError,
			)
		},
		OnWorkerCall: func(ctx context.Context, e *domain.WorkerEvent) {
			logger.DebugContext(ctx, "worker_call", "run_id", e.RunID, "worker", e.Worker, "task", e.Task)
		},
		OnWorkerReturn: func(ctx context.Context, e *domain.WorkerEvent) {
			logger.DebugContext(ctx, "worker_return",
				"run_id", e.RunID,
				"worker", e.Worker,
				"duration", e.Duration,
				"is_error", e.IsError,
			)
		},
		OnFeedback: func(ctx context.Context, e *domain.FeedbackEvent) {
			logger.InfoContext(ctx, "feedback",
				"run_id", e.RunID,
				"position", e.Position,
				"action", feedbackAction(e.Feedback),
			)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_finish",
				"run_id", e.RunID,
				"mode", e.Mode,
				"status", e.Status,
				"duration", e.Duration,
			)
		},
	}
}
