package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/conductor/internal/runtime"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replays decision texts in order and records every request.
type scripted struct {
	mu       sync.Mutex
	texts    []string
	requests []domain.DecisionRequest
}

func script(texts ...string) *scripted {
	return &scripted{texts: texts}
}

func (s *scripted) Decide(ctx context.Context, req domain.DecisionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.texts) == 0 {
		return "", errors.New("script exhausted")
	}
	next := s.texts[0]
	s.texts = s.texts[1:]
	return next, nil
}

func delegateText(worker, task string) string {
	return fmt.Sprintf(`{"command": "delegate", "agent": %q, "task": %q}`, worker, task)
}

func finalText(answer string) string {
	return fmt.Sprintf(`{"command": "final", "answer": %q}`, answer)
}

// workers registers named workers that record their invocation order.
func workers(t *testing.T, calls *[]string, names ...string) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()
	var mu sync.Mutex
	for _, name := range names {
		name := name
		require.NoError(t, reg.RegisterFunc(name, "worker "+name, func(ctx context.Context, task string, c *domain.Context) (any, error) {
			mu.Lock()
			*calls = append(*calls, name)
			mu.Unlock()
			return name + " did " + task, nil
		}))
	}
	return reg
}

func TestController_RoundTrip(t *testing.T) {
	var calls []string
	decider := script(delegateText("A", "research"), delegateText("B", "write"), finalText("done"))
	ctrl := runtime.NewController(workers(t, &calls, "A", "B"), decider)

	run, err := ctrl.Run(context.Background(), "r", "write a report", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSucceeded, run.Status)
	assert.Equal(t, "done", run.Answer)
	assert.Equal(t, []string{"A", "B"}, calls)
	require.Len(t, run.Transcript, 2)
	assert.Equal(t, domain.TranscriptEntry{Round: 1, Worker: "A", Task: "research", Result: "A did research"}, run.Transcript[0])
	assert.Equal(t, domain.TranscriptEntry{Round: 2, Worker: "B", Task: "write", Result: "B did write"}, run.Transcript[1])
	assert.Equal(t, 3, run.Steps)

	// Worker output is merged into the shared Context.
	assert.Equal(t, "B", run.Context.Value(domain.KeyLastWorker))
	assert.Equal(t, "B did write", run.Context.Value(domain.KeyLastResult))

	// Each round sees the goal, the registry and the transcript so far.
	require.Len(t, decider.requests, 3)
	assert.Equal(t, "write a report", decider.requests[0].Goal)
	assert.Equal(t, []domain.WorkerDescriptor{{Name: "A", Summary: "worker A"}, {Name: "B", Summary: "worker B"}}, decider.requests[0].Workers)
	assert.Empty(t, decider.requests[0].Transcript)
	assert.Len(t, decider.requests[2].Transcript, 2)
}

func TestController_UnknownWorkerIsReported(t *testing.T) {
	var calls []string
	var reported []domain.WorkerEvent
	hooks := domain.LifecycleHooks{
		OnWorkerReturn: func(ctx context.Context, e *domain.WorkerEvent) { reported = append(reported, *e) },
	}
	decider := script(delegateText("C", "impossible"), delegateText("A", "fallback"), finalText("ok"))
	ctrl := runtime.NewController(workers(t, &calls, "A"), decider, runtime.WithLifecycleHooks(hooks))

	run, err := ctrl.Run(context.Background(), "r", "goal", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, run.Status)
	assert.Equal(t, []string{"A"}, calls)

	require.Len(t, run.Transcript, 2)
	assert.Equal(t, "C", run.Transcript[0].Worker)
	assert.Contains(t, run.Transcript[0].Error, "unknown worker 'C'")
	assert.Nil(t, run.Transcript[0].Result)

	require.Len(t, reported, 2)
	assert.True(t, reported[0].IsError)
	assert.False(t, reported[1].IsError)

	// The decision maker saw the error on the next round.
	assert.Contains(t, decider.requests[1].Transcript[0].Error, "unknown worker")
}

func TestController_RoundBound(t *testing.T) {
	var calls []string
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = delegateText("A", "again")
	}
	ctrl := runtime.NewController(workers(t, &calls, "A"), script(texts...), runtime.WithMaxRounds(3))

	run, err := ctrl.Run(context.Background(), "r", "loop forever", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMaxRoundsExceeded)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.Len(t, calls, 3)
	assert.Len(t, run.Transcript, 3)
	assert.Equal(t, 3, run.Steps)
}

func TestController_CancellationBetweenRounds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls []string
	rounds := 0
	decider := ports.DecisionMakerFunc(func(ctx context.Context, req domain.DecisionRequest) (string, error) {
		rounds++
		if rounds == 3 {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		}
		if rounds == 5 {
			return finalText("never"), nil
		}
		return delegateText("A", fmt.Sprintf("step %d", rounds)), nil
	})
	ctrl := runtime.NewController(workers(t, &calls, "A"), decider)

	run, err := ctrl.Run(ctx, "r", "five rounds", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StatusCancelled, run.Status)
	assert.Len(t, run.Transcript, 2)
	assert.Len(t, calls, 2)
	assert.Empty(t, run.Error)
	assert.Equal(t, "A did step 2", run.Context.Value(domain.KeyLastResult))
}

func TestController_MalformedDecisionRetriedOnce(t *testing.T) {
	var calls []string
	decider := script("let me think...", finalText("recovered"))
	ctrl := runtime.NewController(workers(t, &calls, "A"), decider)

	run, err := ctrl.Run(context.Background(), "r", "goal", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", run.Answer)

	require.Len(t, decider.requests, 2)
	assert.Empty(t, decider.requests[0].Corrective)
	assert.Contains(t, decider.requests[1].Corrective, "could not be used")
	assert.Equal(t, 1, run.Steps, "a retry does not consume a round")
}

func TestController_MalformedDecisionTwiceFails(t *testing.T) {
	var calls []string
	ctrl := runtime.NewController(workers(t, &calls, "A"), script("nope", `{"command": "dance"}`))

	run, err := ctrl.Run(context.Background(), "r", "goal", nil)
	assert.ErrorIs(t, err, domain.ErrDecisionParse)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.Empty(t, calls)

	var decisions int
	for _, rec := range run.Trace {
		if rec.Kind == domain.TraceDecision {
			decisions++
			assert.NotEmpty(t, rec.Error)
		}
	}
	assert.Equal(t, 2, decisions)
}

func TestController_DecisionMakerErrorRetriedOnce(t *testing.T) {
	var calls []string
	attempts := 0
	decider := ports.DecisionMakerFunc(func(ctx context.Context, req domain.DecisionRequest) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("connection reset")
		}
		return finalText("done"), nil
	})
	ctrl := runtime.NewController(workers(t, &calls, "A"), decider)

	run, err := ctrl.Run(context.Background(), "r", "goal", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", run.Answer)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, run.Steps)
}

func TestController_DecisionMakerErrorTwiceFails(t *testing.T) {
	var calls []string
	attempts := 0
	decider := ports.DecisionMakerFunc(func(ctx context.Context, req domain.DecisionRequest) (string, error) {
		attempts++
		return "", errors.New("connection reset")
	})
	ctrl := runtime.NewController(workers(t, &calls, "A"), decider)

	run, err := ctrl.Run(context.Background(), "r", "goal", nil)
	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.Equal(t, 2, attempts)
}

func TestController_WorkerErrorFailsRun(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterFunc("flaky", "", func(ctx context.Context, task string, c *domain.Context) (any, error) {
		return nil, errors.New("upstream down")
	}))
	ctrl := runtime.NewController(reg, script(delegateText("flaky", "try")))

	run, err := ctrl.Run(context.Background(), "r", "goal", nil)
	require.Error(t, err)
	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "flaky", stepErr.Step)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.Empty(t, run.Transcript)
}

func TestController_RoundTimeout(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterFunc("slow", "", func(ctx context.Context, task string, c *domain.Context) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	}))
	ctrl := runtime.NewController(reg, script(delegateText("slow", "wait")), runtime.WithStepTimeout(20*time.Millisecond))

	run, err := ctrl.Run(context.Background(), "r", "goal", nil)
	assert.ErrorIs(t, err, domain.ErrStepTimeout)
	assert.Equal(t, domain.StatusFailed, run.Status)
}

type summarizerFunc func(ctx context.Context, goal string, transcript []domain.TranscriptEntry, answer any) (any, error)

func (f summarizerFunc) Summarize(ctx context.Context, goal string, transcript []domain.TranscriptEntry, answer any) (any, error) {
	return f(ctx, goal, transcript, answer)
}

func TestController_Summarizer(t *testing.T) {
	var calls []string
	summarizer := summarizerFunc(func(ctx context.Context, goal string, transcript []domain.TranscriptEntry, answer any) (any, error) {
		return fmt.Sprintf("%s: %v after %d rounds", goal, answer, len(transcript)), nil
	})
	ctrl := runtime.NewController(workers(t, &calls, "A"), script(delegateText("A", "x"), finalText("raw")), runtime.WithSummarizer(summarizer))

	run, err := ctrl.Run(context.Background(), "r", "report", nil)
	require.NoError(t, err)
	assert.Equal(t, "report: raw after 1 rounds", run.Answer)

	last := run.Trace[len(run.Trace)-1]
	assert.Equal(t, domain.TraceSummary, last.Kind)
	assert.Equal(t, "raw", last.Input)
}

func TestController_GateExitReturnsLastAnswer(t *testing.T) {
	var calls []string
	source := ports.FeedbackFunc(func(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
		return domain.Feedback{Exit: true}, nil
	})
	ctrl := runtime.NewController(workers(t, &calls, "A"), script(delegateText("A", "first"), delegateText("A", "second")), runtime.WithFeedback(source))

	run, err := ctrl.Run(context.Background(), "r", "goal", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, run.Status)
	assert.Equal(t, "A did first", run.Answer)
	assert.Len(t, calls, 1)
}

func TestController_GateInstructionReachesDecisionMaker(t *testing.T) {
	var calls []string
	source := ports.FeedbackFunc(func(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
		assert.Equal(t, "round 1", req.Position)
		assert.Len(t, req.Transcript, 1)
		return domain.Feedback{Instruction: "focus on tests"}, nil
	})
	decider := script(delegateText("A", "x"), finalText("ok"))
	ctrl := runtime.NewController(workers(t, &calls, "A"), decider, runtime.WithFeedback(source))

	run, err := ctrl.Run(context.Background(), "r", "goal", nil)
	require.NoError(t, err)
	assert.Equal(t, "focus on tests", run.Context.Value(domain.KeyUpdateInstruction))
	assert.Equal(t, "focus on tests", decider.requests[1].Instruction)
}

func TestController_PendingAndResume(t *testing.T) {
	var calls []string
	asked := 0
	source := ports.FeedbackFunc(func(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
		asked++
		if asked == 1 {
			return domain.Feedback{}, domain.ErrFeedbackPending
		}
		return domain.Feedback{}, nil
	})
	ctrl := runtime.NewController(workers(t, &calls, "A"), script(delegateText("A", "x"), finalText("resumed")), runtime.WithFeedback(source))

	run, err := ctrl.Run(context.Background(), "r", "goal", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingInput, run.Status)
	assert.Len(t, run.Transcript, 1)

	run, err = ctrl.Resume(context.Background(), run, domain.Feedback{Instruction: "proceed"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, run.Status)
	assert.Equal(t, "resumed", run.Answer)
	assert.Equal(t, "proceed", run.Context.Value(domain.KeyUpdateInstruction))
}

func TestController_SealsRegistry(t *testing.T) {
	reg := registry.NewRegistry()
	runtime.NewController(reg, script())
	assert.True(t, reg.Sealed())
	assert.ErrorIs(t, reg.RegisterFunc("late", "", nil), registry.ErrSealed)
}
