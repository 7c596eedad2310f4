package conductor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/conductor/internal/runtime"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/aretw0/conductor/pkg/session"
)

// Delegator is the high-level entry point for adaptive runs.
// Each round a DecisionMaker chooses the next worker from the registry or declares completion.
type Delegator struct {
	runtime  *runtime.Controller
	sessions *session.Manager
	settings settings
	logger   *slog.Logger
}

// NewDelegator seals reg and binds it to decider.
func NewDelegator(reg *registry.Registry, decider ports.DecisionMaker, opts ...Option) (*Delegator, error) {
	if decider == nil {
		return nil, fmt.Errorf("decision maker is required")
	}
	if reg == nil || reg.Len() == 0 {
		return nil, fmt.Errorf("at least one worker is required")
	}

	s := newSettings(opts)
	d := &Delegator{
		runtime:  runtime.NewController(reg, decider, s.runtimeOptions(s.logger)...),
		settings: s,
		logger:   s.logger,
	}
	if s.store != nil {
		d.sessions = session.NewManager(s.store, session.WithLocker(s.locker), session.WithLogger(s.logger))
	}
	return d, nil
}

// Registry returns the sealed worker registry.
func (d *Delegator) Registry() *registry.Registry {
	return d.runtime.Registry()
}

// Run drives the decision loop toward goal. The final answer is on Run.Answer.
func (d *Delegator) Run(ctx context.Context, goal string, initial map[string]any) (*domain.Run, error) {
	return d.RunWith(ctx, goal, domain.ContextFrom(initial))
}

// RunWith is Run with an ordered initial Context. The Context is copied.
func (d *Delegator) RunWith(ctx context.Context, goal string, c *domain.Context) (*domain.Run, error) {
	return d.runtime.Run(ctx, d.settings.newID(), goal, c)
}

// Resume loads a parked run from the store and continues it with fb.
func (d *Delegator) Resume(ctx context.Context, runID string, fb domain.Feedback) (*domain.Run, error) {
	if d.sessions == nil {
		return nil, ErrNoStore
	}
	return d.sessions.Update(ctx, runID, func(ctx context.Context, run *domain.Run) (*domain.Run, error) {
		return d.runtime.Resume(ctx, run, fb)
	})
}

// ResumeRun continues a parked run held by the caller.
func (d *Delegator) ResumeRun(ctx context.Context, run *domain.Run, fb domain.Feedback) (*domain.Run, error) {
	return d.runtime.Resume(ctx, run, fb)
}

// Load returns a stored run.
func (d *Delegator) Load(ctx context.Context, runID string) (*domain.Run, error) {
	if d.sessions == nil {
		return nil, ErrNoStore
	}
	return d.sessions.Load(ctx, runID)
}
