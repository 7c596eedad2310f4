package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
)

// gateOutcome is what the driving loop does after consulting the gate.
type gateOutcome int

const (
	gateContinue gateOutcome = iota
	gateExit
	gatePending
)

// consult asks the feedback source for input at position and applies the answer to the run.
// Without a feedback source the loop always continues.
func (c *core) consult(ctx context.Context, run *domain.Run, position string) (gateOutcome, error) {
	if c.feedback == nil {
		return gateContinue, nil
	}

	req := domain.FeedbackRequest{
		RunID:      run.ID,
		Mode:       run.Mode,
		Position:   position,
		Context:    run.Context.Map(),
		Transcript: append([]domain.TranscriptEntry(nil), run.Transcript...),
		Answer:     run.Answer,
	}

	fb, err := invoke(ctx, "feedback", 0, func(ctx context.Context) (domain.Feedback, error) {
		return c.feedback.RequestFeedback(ctx, req)
	})
	if errors.Is(err, domain.ErrFeedbackPending) {
		c.logger.Info("Run awaiting input", "run_id", run.ID, "position", position)
		return gatePending, nil
	}
	if err != nil {
		return gateContinue, err
	}
	return c.applyFeedback(ctx, run, position, fb), nil
}

// applyFeedback merges a non-exit instruction into the Context under the reserved key.
func (c *core) applyFeedback(ctx context.Context, run *domain.Run, position string, fb domain.Feedback) gateOutcome {
	instruction := strings.TrimSpace(fb.Instruction)
	if strings.EqualFold(instruction, domain.ExitMarker) {
		fb.Exit = true
	}

	rec := domain.TraceRecord{Kind: domain.TraceFeedback, Name: position, Input: fb.Instruction}
	if fb.Exit {
		rec.Output = domain.ExitMarker
	}
	run.Record(rec)
	c.emitFeedback(ctx, run, position, fb)

	if fb.Exit {
		c.logger.Info("Gate requested exit", "run_id", run.ID, "position", position)
		return gateExit
	}
	if instruction != "" {
		run.Context.Merge(domain.Update{domain.KeyUpdateInstruction: instruction})
		c.logger.Debug("Instruction injected", "run_id", run.ID, "position", position)
	}
	return gateContinue
}

// resumable checks that a run was parked by the gate.
func resumable(run *domain.Run, mode domain.RunMode) error {
	if run == nil {
		return domain.ErrRunNotFound
	}
	if run.Mode != mode {
		return fmt.Errorf("run '%s' is a %s run: %w", run.ID, run.Mode, domain.ErrNotAwaitingInput)
	}
	if run.Status != domain.StatusAwaitingInput {
		return fmt.Errorf("run '%s' has status %s: %w", run.ID, run.Status, domain.ErrNotAwaitingInput)
	}
	return nil
}
