package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/conductor/pkg/decision"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/registry"
)

// decisionAttempts is the first request plus one retry, shared by failed calls and malformed text.
const decisionAttempts = 2

// Controller is the adaptive driver: each round a decision maker picks the next worker or finishes.
type Controller struct {
	core
	registry *registry.Registry
	decider  ports.DecisionMaker
}

// NewController binds a worker registry and a decision maker. The registry is sealed.
func NewController(reg *registry.Registry, decider ports.DecisionMaker, opts ...Option) *Controller {
	if reg == nil {
		reg = registry.NewRegistry()
	}
	reg.Seal()
	return &Controller{core: newCore(opts), registry: reg, decider: decider}
}

// Registry returns the sealed worker registry.
func (c *Controller) Registry() *registry.Registry {
	return c.registry
}

// Run drives the decision loop toward goal. The initial Context is copied, never mutated.
func (c *Controller) Run(ctx context.Context, runID, goal string, initial *domain.Context) (*domain.Run, error) {
	run := domain.NewRun(runID, domain.ModeDelegation, initial.Clone())
	run.Goal = goal

	c.logger.Info("Delegation started", "run_id", runID, "workers", c.registry.Len(), "max_rounds", c.maxRounds)
	return c.drive(ctx, run)
}

// Resume continues a run parked by the gate, applying fb first.
func (c *Controller) Resume(ctx context.Context, run *domain.Run, fb domain.Feedback) (*domain.Run, error) {
	if err := resumable(run, domain.ModeDelegation); err != nil {
		return run, err
	}
	run.Status = domain.StatusRunning
	if c.applyFeedback(ctx, run, run.Current, fb) == gateExit {
		return c.finish(ctx, run, domain.StatusSucceeded, nil)
	}
	return c.drive(ctx, run)
}

func (c *Controller) drive(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	for {
		if err := ctx.Err(); err != nil {
			return c.finish(ctx, run, domain.StatusCancelled, err)
		}
		if run.Steps >= c.maxRounds {
			return c.finish(ctx, run, domain.StatusFailed, &domain.MaxRoundsError{Limit: c.maxRounds})
		}

		round := run.Steps + 1
		run.Steps = round
		run.Current = fmt.Sprintf("round %d", round)

		dec, err := c.decide(ctx, run, round)
		if err != nil {
			if ctx.Err() != nil {
				return c.finish(ctx, run, domain.StatusCancelled, ctx.Err())
			}
			return c.finish(ctx, run, domain.StatusFailed, err)
		}

		if dec.Kind == domain.DecisionFinal {
			if err := c.conclude(ctx, run, dec.Answer); err != nil {
				if ctx.Err() != nil {
					return c.finish(ctx, run, domain.StatusCancelled, ctx.Err())
				}
				return c.finish(ctx, run, domain.StatusFailed, err)
			}
			return c.finish(ctx, run, domain.StatusSucceeded, nil)
		}

		if err := c.delegate(ctx, run, round, dec); err != nil {
			if ctx.Err() != nil {
				return c.finish(ctx, run, domain.StatusCancelled, ctx.Err())
			}
			return c.finish(ctx, run, domain.StatusFailed, err)
		}
		c.checkpoint(ctx, run)

		outcome, err := c.consult(ctx, run, run.Current)
		if err != nil {
			if ctx.Err() != nil {
				return c.finish(ctx, run, domain.StatusCancelled, ctx.Err())
			}
			return c.finish(ctx, run, domain.StatusFailed, err)
		}
		switch outcome {
		case gateExit:
			return c.finish(ctx, run, domain.StatusSucceeded, nil)
		case gatePending:
			return c.park(ctx, run)
		}
	}
}

// decide asks for a decision. A failed call is retried once as is; malformed text is retried once
// with a corrective instruction. Timeouts and cancellation are not retried.
func (c *Controller) decide(ctx context.Context, run *domain.Run, round int) (domain.Decision, error) {
	req := domain.DecisionRequest{
		Goal:       run.Goal,
		Workers:    c.registry.Descriptors(),
		Transcript: append([]domain.TranscriptEntry(nil), run.Transcript...),
	}
	req.Instruction, _ = run.Context.GetString(domain.KeyUpdateInstruction)

	var lastErr error
	for attempt := 1; attempt <= decisionAttempts; attempt++ {
		text, err := invoke(ctx, "decision", c.stepTimeout, func(ctx context.Context) (string, error) {
			return c.decider.Decide(ctx, req)
		})
		if err != nil {
			run.Record(domain.TraceRecord{Kind: domain.TraceDecision, Name: run.Current, Input: attempt, Error: err.Error()})
			var timeout *domain.StepTimeoutError
			if ctx.Err() != nil || errors.As(err, &timeout) {
				return domain.Decision{}, err
			}
			c.emitDecision(ctx, run, round, attempt, domain.Decision{}, true)
			c.logger.Warn("Decision maker failed", "run_id", run.ID, "round", round, "attempt", attempt, "error", err)
			lastErr = err
			continue
		}

		dec, err := decision.Parse(text)
		rec := domain.TraceRecord{Kind: domain.TraceDecision, Name: run.Current, Input: attempt, Output: text}
		if err != nil {
			rec.Error = err.Error()
			run.Record(rec)
			c.emitDecision(ctx, run, round, attempt, dec, true)
			c.logger.Warn("Malformed decision", "run_id", run.ID, "round", round, "attempt", attempt, "error", err)
			lastErr = err
			req.Corrective = decision.Corrective(err)
			continue
		}
		run.Record(rec)
		c.emitDecision(ctx, run, round, attempt, dec, false)
		c.logger.Debug("Decision", "run_id", run.ID, "round", round, "decision", dec.String())
		return dec, nil
	}
	return domain.Decision{}, lastErr
}

// delegate executes one Delegate decision. An unknown worker is reported in the transcript
// and the loop goes on; a failing worker fails the run.
func (c *Controller) delegate(ctx context.Context, run *domain.Run, round int, dec domain.Decision) error {
	worker, ok := c.registry.Lookup(dec.Worker)
	if !ok {
		err := &domain.UnknownWorkerError{Worker: dec.Worker}
		run.Transcript = append(run.Transcript, domain.TranscriptEntry{
			Round:  round,
			Worker: dec.Worker,
			Task:   dec.Task,
			Error:  err.Error(),
		})
		run.Record(domain.TraceRecord{Kind: domain.TraceWorker, Name: dec.Worker, Input: dec.Task, Error: err.Error()})
		c.emitWorkerReturn(ctx, run, dec.Worker, dec.Task, nil, 0, true)
		c.logger.Warn("Decision named an unknown worker", "run_id", run.ID, "round", round, "worker", dec.Worker)
		return nil
	}

	c.emitWorkerCall(ctx, run, dec.Worker, dec.Task)
	snapshot := run.Context.Clone()
	start := time.Now()
	result, err := invoke(ctx, dec.Worker, c.stepTimeout, func(ctx context.Context) (any, error) {
		return worker.Invoke(ctx, dec.Task, snapshot)
	})
	elapsed := time.Since(start)

	rec := domain.TraceRecord{Kind: domain.TraceWorker, Name: dec.Worker, Input: dec.Task}
	if err != nil {
		rec.Error = err.Error()
		run.Record(rec)
		c.emitWorkerReturn(ctx, run, dec.Worker, dec.Task, nil, elapsed, true)
		var timeout *domain.StepTimeoutError
		if errors.As(err, &timeout) || ctx.Err() != nil {
			return err
		}
		return &domain.StepError{Step: dec.Worker, Err: err}
	}

	rec.Output = result
	run.Record(rec)
	run.Transcript = append(run.Transcript, domain.TranscriptEntry{
		Round:  round,
		Worker: dec.Worker,
		Task:   dec.Task,
		Result: result,
	})
	run.Context.Merge(domain.Update{
		domain.KeyLastWorker: dec.Worker,
		domain.KeyLastResult: result,
	})
	run.Answer = result
	c.emitWorkerReturn(ctx, run, dec.Worker, dec.Task, result, elapsed, false)
	c.logger.Debug("Worker returned", "run_id", run.ID, "round", round, "worker", dec.Worker, "duration", elapsed)
	return nil
}

// conclude records the final answer, polished by the summarizer when one is configured.
func (c *Controller) conclude(ctx context.Context, run *domain.Run, answer any) error {
	if c.summarizer != nil {
		transcript := append([]domain.TranscriptEntry(nil), run.Transcript...)
		out, err := invoke(ctx, "summarizer", c.stepTimeout, func(ctx context.Context) (any, error) {
			return c.summarizer.Summarize(ctx, run.Goal, transcript, answer)
		})
		rec := domain.TraceRecord{Kind: domain.TraceSummary, Name: "summarizer", Input: answer}
		if err != nil {
			rec.Error = err.Error()
			run.Record(rec)
			return fmt.Errorf("summarize: %w", err)
		}
		rec.Output = out
		run.Record(rec)
		answer = out
	}
	run.Answer = answer
	return nil
}
