package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/graph"
)

// Engine is the graph-mode state machine runner.
// It is stateless between runs; every Run owns its Context.
type Engine struct {
	core
	graph *graph.Graph
}

// NewEngine creates a new engine for a validated graph.
func NewEngine(g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{core: newCore(opts), graph: g}
	if g.Name != "" {
		e.logger = e.logger.With("graph", g.Name)
	}
	return e
}

// Graph returns the graph driven by the engine.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Run executes the graph from initial (the graph entry when empty) until END, a failure,
// cancellation or the gate parks it. The initial Context is copied, never mutated.
func (e *Engine) Run(ctx context.Context, runID, initial string, c *domain.Context) (*domain.Run, error) {
	if initial == "" {
		initial = e.graph.Entry
	}
	run := domain.NewRun(runID, domain.ModeGraph, c.Clone())
	run.Initial = initial
	run.Current = initial

	e.logger.Info("Run started", "run_id", runID, "initial", initial)
	return e.drive(ctx, run)
}

// Resume continues a run parked by the gate, applying fb first.
func (e *Engine) Resume(ctx context.Context, run *domain.Run, fb domain.Feedback) (*domain.Run, error) {
	if err := resumable(run, domain.ModeGraph); err != nil {
		return run, err
	}
	run.Status = domain.StatusRunning
	if e.applyFeedback(ctx, run, run.Current, fb) == gateExit {
		return e.finish(ctx, run, domain.StatusSucceeded, nil)
	}
	return e.drive(ctx, run)
}

func (e *Engine) drive(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	for {
		if err := ctx.Err(); err != nil {
			return e.finish(ctx, run, domain.StatusCancelled, err)
		}
		if run.Current == domain.END {
			return e.finish(ctx, run, domain.StatusSucceeded, nil)
		}

		st, ok := e.graph.State(run.Current)
		if !ok {
			return e.finish(ctx, run, domain.StatusFailed, &domain.UnknownStateError{State: run.Current})
		}
		if len(run.History) >= e.maxIterations {
			return e.finish(ctx, run, domain.StatusFailed, &domain.IterationLimitError{Limit: e.maxIterations, State: st.Name})
		}

		if err := e.execute(ctx, run, st); err != nil {
			if ctx.Err() != nil {
				return e.finish(ctx, run, domain.StatusCancelled, ctx.Err())
			}
			return e.finish(ctx, run, domain.StatusFailed, err)
		}

		next, err := st.Transition.Resolve(st.Name, run.Context)
		if err != nil {
			run.Record(domain.TraceRecord{Kind: domain.TraceTransition, Name: st.Name, Error: err.Error()})
			return e.finish(ctx, run, domain.StatusFailed, err)
		}
		run.Record(domain.TraceRecord{Kind: domain.TraceTransition, Name: st.Name, Output: next})
		e.emitTransition(ctx, run, st.Name, next)
		e.logger.Debug("Transition resolved", "run_id", run.ID, "from", st.Name, "to", next)
		run.Transitions++
		run.Current = next
		e.checkpoint(ctx, run)

		if next == domain.END {
			continue
		}
		outcome, err := e.consult(ctx, run, next)
		if err != nil {
			if ctx.Err() != nil {
				return e.finish(ctx, run, domain.StatusCancelled, ctx.Err())
			}
			return e.finish(ctx, run, domain.StatusFailed, err)
		}
		switch outcome {
		case gateExit:
			return e.finish(ctx, run, domain.StatusSucceeded, nil)
		case gatePending:
			return e.park(ctx, run)
		}
	}
}

// execute runs the steps of a state in order, merging each update before the next step starts.
func (e *Engine) execute(ctx context.Context, run *domain.Run, st *graph.State) error {
	e.emitStateEnter(ctx, run, st.Name)
	run.History = append(run.History, st.Name)
	before := run.Context.Clone()

	for _, step := range st.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := validateContext(st.Name, step, run.Context); err != nil {
			return err
		}

		name := st.Name + "/" + step.Name()
		// An abandoned step may keep writing to its snapshot, so the trace input is taken first.
		snapshot := run.Context.Clone()
		input := snapshot.Map()
		start := time.Now()
		update, err := invoke(ctx, name, e.stepTimeout, func(ctx context.Context) (domain.Update, error) {
			return step.Execute(ctx, snapshot)
		})
		elapsed := time.Since(start)
		run.Steps++

		rec := domain.TraceRecord{Kind: domain.TraceStep, Name: name, Input: input}
		if err != nil {
			rec.Error = err.Error()
			run.Record(rec)
			e.emitStepDone(ctx, run, st.Name, step.Name(), elapsed, true)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var timeout *domain.StepTimeoutError
			if errors.As(err, &timeout) {
				return err
			}
			return &domain.StepError{State: st.Name, Step: step.Name(), Err: err}
		}

		run.Context.Merge(update)
		rec.Output = update
		run.Record(rec)
		e.emitStepDone(ctx, run, st.Name, step.Name(), elapsed, false)
		e.logger.Debug("Step done", "run_id", run.ID, "state", st.Name, "step", step.Name(), "duration", elapsed)
	}

	e.emitStateLeave(ctx, run, st.Name, domain.DiffContext(before, run.Context))
	return nil
}
