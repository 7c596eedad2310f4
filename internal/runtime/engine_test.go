package runtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/conductor/internal/runtime"
	"github.com/aretw0/conductor/pkg/adapters/memory"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/graph"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(name, key string, value any) graph.Step {
	return graph.Func(name, func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		return domain.Update{key: value}, nil
	})
}

func chain(names ...string) *graph.Graph {
	g := graph.New("chain")
	for i, name := range names {
		next := domain.END
		if i+1 < len(names) {
			next = names[i+1]
		}
		g.AddState(name, set(name, "visited_"+name, true))
		g.Connect(name, next)
	}
	return g
}

func TestEngine_MergeSemantics(t *testing.T) {
	g := graph.New("merge")
	g.AddState("work",
		set("add", "b", 2),
		graph.Func("reader", func(ctx context.Context, c *domain.Context) (domain.Update, error) {
			// Steps inside a state observe earlier merges.
			return domain.Update{"b_seen": c.Value("b"), "a": "overwritten"}, nil
		}),
	)
	g.Connect("work", domain.END)
	require.NoError(t, g.Validate())

	initial := domain.ContextFrom(map[string]any{"a": 1, "keep": "me"})
	run, err := runtime.NewEngine(g).Run(context.Background(), "r1", "", initial)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSucceeded, run.Status)
	assert.Equal(t, "overwritten", run.Context.Value("a"))
	assert.Equal(t, "me", run.Context.Value("keep"))
	assert.Equal(t, 2, run.Context.Value("b_seen"))
	assert.Equal(t, []string{"a", "keep", "b", "b_seen"}, run.Context.Keys())

	// The caller's Context is never mutated.
	assert.Equal(t, []string{"a", "keep"}, initial.Keys())
	assert.Equal(t, 1, initial.Value("a"))
}

func TestEngine_TerminatesInExactlyLTransitions(t *testing.T) {
	for _, names := range [][]string{{"a"}, {"a", "b"}, {"a", "b", "c", "d"}} {
		run, err := runtime.NewEngine(chain(names...)).Run(context.Background(), "r", "", nil)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSucceeded, run.Status)
		assert.Equal(t, len(names), run.Transitions)
		assert.Equal(t, names, run.History)
		assert.Equal(t, domain.END, run.Current)
	}
}

func TestEngine_ConditionalReviewLoop(t *testing.T) {
	g := graph.New("review")
	g.AddState("write", graph.Func("draft", func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		n, _ := c.Value("revision").(int)
		return domain.Update{"revision": n + 1}, nil
	}))
	g.Branch("write", func(c *domain.Context) string {
		if c.Value("revision").(int) >= c.Value("max_revisions").(int) {
			return "publish"
		}
		return "write"
	}, "write", "publish")
	g.AddState("publish", set("publish", "published", true))
	g.Connect("publish", domain.END)
	require.NoError(t, g.Validate())

	run, err := runtime.NewEngine(g).Run(context.Background(), "r", "write", domain.ContextFrom(map[string]any{"max_revisions": 3}))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, run.Status)
	assert.Equal(t, 3, run.Context.Value("revision"))
	assert.Equal(t, []string{"write", "write", "write", "publish"}, run.History)
}

func TestEngine_AllowSetViolationDoesNotAdvance(t *testing.T) {
	g := graph.New("rogue")
	g.AddState("a", set("s", "x", 1))
	g.Branch("a", func(c *domain.Context) string { return "nowhere" }, "b")
	g.AddState("b")
	g.Connect("b", domain.END)

	run, err := runtime.NewEngine(g).Run(context.Background(), "r", "a", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.Equal(t, "a", run.Current)
	assert.Equal(t, 0, run.Transitions)
	assert.Equal(t, 1, run.Context.Value("x"), "partial progress is kept")
	assert.NotEmpty(t, run.Error)
}

func TestEngine_IterationCeiling(t *testing.T) {
	g := graph.New("spin")
	g.AddState("loop", graph.Func("tick", func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		n, _ := c.Value("n").(int)
		return domain.Update{"n": n + 1}, nil
	}))
	g.Connect("loop", "loop")

	run, err := runtime.NewEngine(g, runtime.WithMaxIterations(25)).Run(context.Background(), "r", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIterationLimitExceeded)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.Len(t, run.History, 25)
	assert.Equal(t, 25, run.Context.Value("n"))

	var limit *domain.IterationLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 25, limit.Limit)
	assert.Equal(t, "loop", limit.State)
}

func TestEngine_UnknownState(t *testing.T) {
	run, err := runtime.NewEngine(chain("a")).Run(context.Background(), "r", "missing", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownState)
	require.NotNil(t, run)
	assert.Equal(t, domain.StatusFailed, run.Status)
}

func TestEngine_StepErrorKeepsAccumulatedContext(t *testing.T) {
	boom := errors.New("boom")
	g := graph.New("fail")
	g.AddState("a", set("first", "first", "ok"), graph.Func("second", func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		return nil, boom
	}), set("third", "third", "never"))
	g.Connect("a", domain.END)

	run, err := runtime.NewEngine(g).Run(context.Background(), "r", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "a", stepErr.State)
	assert.Equal(t, "second", stepErr.Step)

	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.Equal(t, "ok", run.Context.Value("first"))
	assert.False(t, run.Context.Has("third"))
	assert.Equal(t, 2, run.Steps)
}

func TestEngine_MissingRequiredContext(t *testing.T) {
	g := graph.New("req")
	g.AddState("a", graph.Func("needs", func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		return nil, nil
	}, "topic", "audience"))
	g.Connect("a", domain.END)

	run, err := runtime.NewEngine(g).Run(context.Background(), "r", "", domain.ContextFrom(map[string]any{"topic": "go"}))
	assert.ErrorIs(t, err, domain.ErrMissingContext)
	var missing *domain.MissingContextError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"audience"}, missing.MissingKeys)
	assert.Equal(t, domain.StatusFailed, run.Status)
}

func TestEngine_StepTimeout(t *testing.T) {
	g := graph.New("slow")
	g.AddState("a", set("fast", "fast", true), graph.Func("slow", func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		<-ctx.Done()
		return domain.Update{"late": true}, ctx.Err()
	}))
	g.Connect("a", domain.END)

	run, err := runtime.NewEngine(g, runtime.WithStepTimeout(20*time.Millisecond)).Run(context.Background(), "r", "", nil)
	assert.ErrorIs(t, err, domain.ErrStepTimeout)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.True(t, run.Context.Has("fast"))
	assert.False(t, run.Context.Has("late"))
}

func TestEngine_StepTimeoutIgnoringContext(t *testing.T) {
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })

	g := graph.New("stubborn")
	g.AddState("a", graph.Func("spin", func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return nil, nil
			default:
				c.Set("k", i)
			}
		}
	}))
	g.Connect("a", domain.END)

	run, err := runtime.NewEngine(g, runtime.WithStepTimeout(5*time.Millisecond)).Run(context.Background(), "r", "", nil)
	assert.ErrorIs(t, err, domain.ErrStepTimeout)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.False(t, run.Context.Has("k"))

	var spin *domain.TraceRecord
	for i := range run.Trace {
		if run.Trace[i].Name == "a/spin" {
			spin = &run.Trace[i]
		}
	}
	require.NotNil(t, spin)
	assert.Equal(t, map[string]any{}, spin.Input)
	assert.NotEmpty(t, spin.Error)

	// Reading the trace again while the step still runs must not race with it.
	data, err := json.Marshal(run)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"k":`)
}

func TestEngine_CancellationKeepsLastMergedContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := graph.New("cancel")
	g.AddState("a", set("one", "one", 1))
	g.Connect("a", "b")
	g.AddState("b", graph.Func("block", func(stepCtx context.Context, c *domain.Context) (domain.Update, error) {
		cancel()
		<-stepCtx.Done()
		return domain.Update{"two": 2}, nil
	}))
	g.Connect("b", domain.END)

	run, err := runtime.NewEngine(g).Run(ctx, "r", "", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StatusCancelled, run.Status)
	assert.Equal(t, 1, run.Context.Value("one"))
	assert.False(t, run.Context.Has("two"))
	assert.Empty(t, run.Error, "cancellation is not a failure")
}

func TestEngine_LifecycleHooksAndTrace(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
		delta  domain.Update
	)
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, s)
	}
	hooks := domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) { record("enter:" + e.State) },
		OnStateLeave: func(ctx context.Context, e *domain.StateEvent) {
			record("leave:" + e.State)
			if e.State == "b" {
				delta = e.Delta
			}
		},
		OnStepDone:   func(ctx context.Context, e *domain.StepEvent) { record("step:" + e.Step) },
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) { record(e.From + "->" + e.To) },
		OnRunFinish:  func(ctx context.Context, e *domain.RunEvent) { record("finish:" + string(e.Status)) },
	}

	run, err := runtime.NewEngine(chain("a", "b"), runtime.WithLifecycleHooks(hooks)).Run(context.Background(), "r", "", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"enter:a", "step:a", "leave:a", "a->b",
		"enter:b", "step:b", "leave:b", "b->" + domain.END,
		"finish:succeeded",
	}, events)
	assert.Equal(t, domain.Update{"visited_b": true}, delta)

	require.Len(t, run.Trace, 4)
	for i, rec := range run.Trace {
		assert.Equal(t, i+1, rec.Seq)
		assert.False(t, rec.Timestamp.IsZero())
	}
	assert.Equal(t, domain.TraceStep, run.Trace[0].Kind)
	assert.Equal(t, "a/a", run.Trace[0].Name)
	assert.Equal(t, domain.TraceTransition, run.Trace[1].Kind)
	assert.Equal(t, "b", run.Trace[1].Output)
}

func TestEngine_CheckpointsToStore(t *testing.T) {
	store := memory.NewStore()
	run, err := runtime.NewEngine(chain("a", "b"), runtime.WithStore(store)).Run(context.Background(), "persisted", "", nil)
	require.NoError(t, err)

	saved, err := store.Load(context.Background(), "persisted")
	require.NoError(t, err)
	assert.Equal(t, run.Status, saved.Status)
	assert.Equal(t, run.History, saved.History)
	assert.Equal(t, true, saved.Context.Value("visited_b"))
}

func TestEngine_GateInjectsInstruction(t *testing.T) {
	var requests []domain.FeedbackRequest
	source := ports.FeedbackFunc(func(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
		requests = append(requests, req)
		return domain.Feedback{Instruction: "be brief"}, nil
	})

	var seen any
	g := graph.New("gate")
	g.AddState("a", set("a", "a", 1))
	g.Connect("a", "b")
	g.AddState("b", graph.Func("read", func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		seen = c.Value(domain.KeyUpdateInstruction)
		return nil, nil
	}))
	g.Connect("b", domain.END)

	run, err := runtime.NewEngine(g, runtime.WithFeedback(source)).Run(context.Background(), "r", "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, run.Status)
	assert.Equal(t, "be brief", seen)

	// Consulted once: after a -> b, never before END.
	require.Len(t, requests, 1)
	assert.Equal(t, "b", requests[0].Position)
	assert.Equal(t, 1, requests[0].Context["a"])
}

func TestEngine_GateExit(t *testing.T) {
	source := ports.FeedbackFunc(func(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
		return domain.Feedback{Instruction: "exit"}, nil
	})

	run, err := runtime.NewEngine(chain("a", "b", "c"), runtime.WithFeedback(source)).Run(context.Background(), "r", "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, run.Status)
	assert.Equal(t, []string{"a"}, run.History)
	assert.Equal(t, "b", run.Current)
}

func TestEngine_GatePendingAndResume(t *testing.T) {
	store := memory.NewStore()
	pending := ports.FeedbackFunc(func(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
		return domain.Feedback{}, domain.ErrFeedbackPending
	})
	engine := runtime.NewEngine(chain("a", "b"), runtime.WithFeedback(pending), runtime.WithStore(store))

	run, err := engine.Run(context.Background(), "parked", "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingInput, run.Status)
	assert.Equal(t, "b", run.Current)

	saved, err := store.Load(context.Background(), "parked")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingInput, saved.Status)

	resumed, err := engine.Resume(context.Background(), saved, domain.Feedback{Instruction: "carry on"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, resumed.Status)
	assert.Equal(t, "carry on", resumed.Context.Value(domain.KeyUpdateInstruction))
	assert.Equal(t, []string{"a", "b"}, resumed.History)

	_, err = engine.Resume(context.Background(), resumed, domain.Feedback{})
	assert.ErrorIs(t, err, domain.ErrNotAwaitingInput)
}

func TestEngine_ConcurrentRunsOwnTheirContext(t *testing.T) {
	g := graph.New("counter")
	g.AddState("inc", graph.Func("inc", func(ctx context.Context, c *domain.Context) (domain.Update, error) {
		return domain.Update{"n": c.Value("n").(int) + 1}, nil
	}))
	g.Connect("inc", domain.END)
	engine := runtime.NewEngine(g)

	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run, err := engine.Run(context.Background(), "r", "", domain.ContextFrom(map[string]any{"n": i}))
			assert.NoError(t, err)
			results[i] = run.Context.Value("n").(int)
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		assert.Equal(t, i+1, got)
	}
}
