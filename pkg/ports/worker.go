package ports

import (
	"context"

	"github.com/aretw0/conductor/pkg/domain"
)

// Worker is a named capability invoked by the delegation loop or by a worker step.
// The result is any structured value; it is appended to the transcript as-is.
// A Worker may itself be a nested orchestrator.
type Worker interface {
	Invoke(ctx context.Context, task string, c *domain.Context) (any, error)
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc func(ctx context.Context, task string, c *domain.Context) (any, error)

// Invoke calls f.
func (f WorkerFunc) Invoke(ctx context.Context, task string, c *domain.Context) (any, error) {
	return f(ctx, task, c)
}

// DecisionMaker produces the structured decision text for a delegation round.
// The core parses and validates the text; it never trusts its shape.
type DecisionMaker interface {
	Decide(ctx context.Context, req domain.DecisionRequest) (string, error)
}

// DecisionMakerFunc adapts a function to the DecisionMaker interface.
type DecisionMakerFunc func(ctx context.Context, req domain.DecisionRequest) (string, error)

// Decide calls f.
func (f DecisionMakerFunc) Decide(ctx context.Context, req domain.DecisionRequest) (string, error) {
	return f(ctx, req)
}

// Summarizer turns a finished transcript into a polished final answer.
type Summarizer interface {
	Summarize(ctx context.Context, goal string, transcript []domain.TranscriptEntry, answer any) (any, error)
}
