package conductor

import (
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/conductor/internal/runtime"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/google/uuid"
)

// settings collects the options shared by Engine and Delegator.
type settings struct {
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	store         ports.RunStore
	locker        ports.DistributedLocker
	feedback      ports.FeedbackSource
	summarizer    ports.Summarizer
	stepTimeout   time.Duration
	maxIterations int
	maxRounds     int
	newID         func() string
}

// Option defines a functional option for configuring an Engine or a Delegator.
type Option func(*settings)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) {
		s.hooks = hooks
	}
}

// WithStore persists runs after every state or round and enables Resume by ID.
func WithStore(store ports.RunStore) Option {
	return func(s *settings) {
		s.store = store
	}
}

// WithLocker guards resumes with a distributed lock (e.g. Redis) when several replicas share a store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *settings) {
		s.locker = locker
	}
}

// WithFeedback installs the interrupt gate.
func WithFeedback(source ports.FeedbackSource) Option {
	return func(s *settings) {
		s.feedback = source
	}
}

// WithSummarizer polishes the final answer of delegation runs.
func WithSummarizer(summarizer ports.Summarizer) Option {
	return func(s *settings) {
		s.summarizer = summarizer
	}
}

// WithStepTimeout bounds every step, worker call and decision request.
func WithStepTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.stepTimeout = d
	}
}

// WithMaxIterations sets the graph iteration ceiling (default 1000).
func WithMaxIterations(n int) Option {
	return func(s *settings) {
		s.maxIterations = n
	}
}

// WithMaxRounds sets the delegation round bound (default 10).
func WithMaxRounds(n int) Option {
	return func(s *settings) {
		s.maxRounds = n
	}
}

// WithIDGenerator overrides the run ID generator (random UUIDs by default).
func WithIDGenerator(fn func() string) Option {
	return func(s *settings) {
		s.newID = fn
	}
}

func newSettings(opts []Option) settings {
	s := settings{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&s)
	}
	// Ensure logger is initialized so engines never log to a nil handler.
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s settings) runtimeOptions(logger *slog.Logger) []runtime.Option {
	return []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithLifecycleHooks(s.hooks),
		runtime.WithStore(s.store),
		runtime.WithFeedback(s.feedback),
		runtime.WithSummarizer(s.summarizer),
		runtime.WithStepTimeout(s.stepTimeout),
		runtime.WithMaxIterations(s.maxIterations),
		runtime.WithMaxRounds(s.maxRounds),
	}
}
