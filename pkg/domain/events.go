package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateEnter   EventType = "state_enter"
	EventStateLeave   EventType = "state_leave"
	EventStepDone     EventType = "step_done"
	EventTransition   EventType = "transition"
	EventDecision     EventType = "decision"
	EventWorkerCall   EventType = "worker_call"
	EventWorkerReturn EventType = "worker_return"
	EventFeedback     EventType = "feedback"
	EventRunFinish    EventType = "run_finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// StateEvent represents entry or exit from a graph state.
type StateEvent struct {
	EventBase
	State string `json:"state"`
	// Delta holds the Context keys written while the state ran (leave events only).
	Delta Update `json:"delta,omitempty"`
}

// StepEvent represents a completed step inside a state.
type StepEvent struct {
	EventBase
	State    string        `json:"state"`
	Step     string        `json:"step"`
	Duration time.Duration `json:"duration"`
	IsError  bool          `json:"is_error,omitempty"`
}

// TransitionEvent represents a resolved transition.
type TransitionEvent struct {
	EventBase
	From string `json:"from"`
	To   string `json:"to"`
}

// DecisionEvent represents one parsed (or rejected) decision.
type DecisionEvent struct {
	EventBase
	Round    int      `json:"round"`
	Decision Decision `json:"decision"`
	Attempt  int      `json:"attempt"`
	IsError  bool     `json:"is_error,omitempty"`
}

// WorkerEvent represents a worker invocation.
type WorkerEvent struct {
	EventBase
	Worker   string        `json:"worker"`
	Task     string        `json:"task,omitempty"`
	Output   any           `json:"output,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// FeedbackEvent represents an answer from the gate.
type FeedbackEvent struct {
	EventBase
	Position string   `json:"position"`
	Feedback Feedback `json:"feedback"`
}

// RunEvent represents the end of a run, whatever the outcome.
type RunEvent struct {
	EventBase
	Mode     RunMode       `json:"mode"`
	Status   RunStatus     `json:"status"`
	Duration time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability.
// Every callback is optional.
type LifecycleHooks struct {
	OnStateEnter   func(context.Context, *StateEvent)
	OnStateLeave   func(context.Context, *StateEvent)
	OnStepDone     func(context.Context, *StepEvent)
	OnTransition   func(context.Context, *TransitionEvent)
	OnDecision     func(context.Context, *DecisionEvent)
	OnWorkerCall   func(context.Context, *WorkerEvent)
	OnWorkerReturn func(context.Context, *WorkerEvent)
	OnFeedback     func(context.Context, *FeedbackEvent)
	OnRunFinish    func(context.Context, *RunEvent)
}

// CombineHooks fans every callback out to each of the given hook sets in order.
func CombineHooks(sets ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *StateEvent) {
			for _, h := range sets {
				if h.OnStateEnter != nil {
					h.OnStateEnter(ctx, e)
				}
			}
		},
		OnStateLeave: func(ctx context.Context, e *StateEvent) {
			for _, h := range sets {
				if h.OnStateLeave != nil {
					h.OnStateLeave(ctx, e)
				}
			}
		},
		OnStepDone: func(ctx context.Context, e *StepEvent) {
			for _, h := range sets {
				if h.OnStepDone != nil {
					h.OnStepDone(ctx, e)
				}
			}
		},
		OnTransition: func(ctx context.Context, e *TransitionEvent) {
			for _, h := range sets {
				if h.OnTransition != nil {
					h.OnTransition(ctx, e)
				}
			}
		},
		OnDecision: func(ctx context.Context, e *DecisionEvent) {
			for _, h := range sets {
				if h.OnDecision != nil {
					h.OnDecision(ctx, e)
				}
			}
		},
		OnWorkerCall: func(ctx context.Context, e *WorkerEvent) {
			for _, h := range sets {
				if h.OnWorkerCall != nil {
					h.OnWorkerCall(ctx, e)
				}
			}
		},
		OnWorkerReturn: func(ctx context.Context, e *WorkerEvent) {
			for _, h := range sets {
				if h.OnWorkerReturn != nil {
					h.OnWorkerReturn(ctx, e)
				}
			}
		},
		OnFeedback: func(ctx context.Context, e *FeedbackEvent) {
			for _, h := range sets {
				if h.OnFeedback != nil {
					h.OnFeedback(ctx, e)
				}
			}
		},
		OnRunFinish: func(ctx context.Context, e *RunEvent) {
			for _, h := range sets {
				if h.OnRunFinish != nil {
					h.OnRunFinish(ctx, e)
				}
			}
		},
	}
}
