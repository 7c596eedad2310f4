package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/conductor/internal/runtime"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/graph"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/session"
)

// ErrNoStore is returned by operations that need a RunStore when none was configured.
var ErrNoStore = errors.New("no run store configured")

// Engine is the high-level entry point for graph-mode runs.
// It wraps the internal runtime and provides a simplified API for consumers.
// An Engine is safe for concurrent use; every Run owns its Context.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager
	settings settings
	logger   *slog.Logger
	Name     string
}

// New validates g and builds an Engine for it.
func New(g *graph.Graph, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("graph '%s': %w", g.Name, err)
	}

	s := newSettings(opts)
	logger := s.logger
	if g.Name != "" {
		logger = logger.With("graph", g.Name)
	}
	if unreachable := g.Unreachable(); len(unreachable) > 0 {
		logger.Warn("Graph has unreachable states", "states", unreachable)
	}

	eng := &Engine{
		runtime:  runtime.NewEngine(g, s.runtimeOptions(logger)...),
		settings: s,
		logger:   logger,
		Name:     g.Name,
	}
	if s.store != nil {
		eng.sessions = session.NewManager(s.store, session.WithLocker(s.locker), session.WithLogger(logger))
	}
	return eng, nil
}

// Graph returns the validated graph.
func (e *Engine) Graph() *graph.Graph {
	return e.runtime.Graph()
}

// Run executes the graph from its entry state with the given initial values.
func (e *Engine) Run(ctx context.Context, initial map[string]any) (*domain.Run, error) {
	return e.RunFrom(ctx, "", domain.ContextFrom(initial))
}

// RunFrom executes the graph from state (the entry when empty). The Context is copied.
func (e *Engine) RunFrom(ctx context.Context, state string, c *domain.Context) (*domain.Run, error) {
	return e.runtime.Run(ctx, e.settings.newID(), state, c)
}

// Resume loads a parked run from the store and continues it with fb.
func (e *Engine) Resume(ctx context.Context, runID string, fb domain.Feedback) (*domain.Run, error) {
	if e.sessions == nil {
		return nil, ErrNoStore
	}
	return e.sessions.Update(ctx, runID, func(ctx context.Context, run *domain.Run) (*domain.Run, error) {
		return e.runtime.Resume(ctx, run, fb)
	})
}

// ResumeRun continues a parked run held by the caller.
func (e *Engine) ResumeRun(ctx context.Context, run *domain.Run, fb domain.Feedback) (*domain.Run, error) {
	return e.runtime.Resume(ctx, run, fb)
}

// Load returns a stored run.
func (e *Engine) Load(ctx context.Context, runID string) (*domain.Run, error) {
	if e.sessions == nil {
		return nil, ErrNoStore
	}
	return e.sessions.Load(ctx, runID)
}

// Store returns the configured run store, or nil.
func (e *Engine) Store() ports.RunStore {
	return e.settings.store
}
