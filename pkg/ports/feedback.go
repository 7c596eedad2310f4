package ports

import (
	"context"

	"github.com/aretw0/conductor/pkg/domain"
)

// FeedbackSource is the external actor behind the interrupt gate.
// Returning domain.ErrFeedbackPending parks the run until it is resumed.
type FeedbackSource interface {
	RequestFeedback(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error)
}

// FeedbackFunc adapts a function to the FeedbackSource interface.
type FeedbackFunc func(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error)

// RequestFeedback calls f.
func (f FeedbackFunc) RequestFeedback(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
	return f(ctx, req)
}
