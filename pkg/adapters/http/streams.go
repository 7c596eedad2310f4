package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/conductor/pkg/domain"
)

// StreamManager fans lifecycle events out to SSE subscribers, per run ID.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a buffered channel for runID. The returned func unsubscribes and closes it.
func (sm *StreamManager) Subscribe(runID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[runID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		}
	}
}

// Broadcast sends msg to every subscriber of runID. Slow subscribers drop messages.
func (sm *StreamManager) Broadcast(runID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[runID] {
		select {
		case ch <- msg:
		default:
			slog.Warn("SSE: Client buffer full, dropping message", "run_id", runID)
		}
	}
}

func (sm *StreamManager) publish(runID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("SSE: Failed to encode event", "run_id", runID, "err", err)
		return
	}
	sm.Broadcast(runID, string(data))
}

// Hooks returns lifecycle hooks that publish every event to the run's subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter:   func(ctx context.Context, e *domain.StateEvent) { sm.publish(e.RunID, e) },
		OnStateLeave:   func(ctx context.Context, e *domain.StateEvent) { sm.publish(e.RunID, e) },
		OnStepDone:     func(ctx context.Context, e *domain.StepEvent) { sm.publish(e.RunID, e) },
		OnTransition:   func(ctx context.Context, e *domain.TransitionEvent) { sm.publish(e.RunID, e) },
		OnDecision:     func(ctx context.Context, e *domain.DecisionEvent) { sm.publish(e.RunID, e) },
		OnWorkerCall:   func(ctx context.Context, e *domain.WorkerEvent) { sm.publish(e.RunID, e) },
		OnWorkerReturn: func(ctx context.Context, e *domain.WorkerEvent) { sm.publish(e.RunID, e) },
		OnFeedback:     func(ctx context.Context, e *domain.FeedbackEvent) { sm.publish(e.RunID, e) },
		OnRunFinish:    func(ctx context.Context, e *domain.RunEvent) { sm.publish(e.RunID, e) },
	}
}
