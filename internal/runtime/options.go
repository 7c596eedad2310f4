package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
)

const (
	// DefaultMaxIterations bounds state executions of a graph run.
	DefaultMaxIterations = 1000
	// DefaultMaxRounds bounds decision rounds of a delegation run.
	DefaultMaxRounds = 10
)

// core holds the collaborators shared by both driving loops.
type core struct {
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	store         ports.RunStore
	feedback      ports.FeedbackSource
	summarizer    ports.Summarizer
	stepTimeout   time.Duration
	maxIterations int
	maxRounds     int
}

// Option configures an Engine or a Controller.
type Option func(*core)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *core) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *core) {
		c.hooks = hooks
	}
}

// WithStore enables checkpointing of the run after every state or round.
func WithStore(store ports.RunStore) Option {
	return func(c *core) {
		c.store = store
	}
}

// WithFeedback installs the interrupt gate consulted between rounds.
func WithFeedback(source ports.FeedbackSource) Option {
	return func(c *core) {
		c.feedback = source
	}
}

// WithSummarizer enables the summarisation pass on Final decisions.
func WithSummarizer(s ports.Summarizer) Option {
	return func(c *core) {
		c.summarizer = s
	}
}

// WithStepTimeout bounds each step, worker call and decision request. Zero disables it.
func WithStepTimeout(d time.Duration) Option {
	return func(c *core) {
		c.stepTimeout = d
	}
}

// WithMaxIterations sets the graph iteration ceiling. Non-positive values keep the default.
func WithMaxIterations(n int) Option {
	return func(c *core) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithMaxRounds sets the delegation round bound. Non-positive values keep the default.
func WithMaxRounds(n int) Option {
	return func(c *core) {
		if n > 0 {
			c.maxRounds = n
		}
	}
}

func newCore(opts []Option) core {
	c := core{
		logger:        logging.NewNop(),
		maxIterations: DefaultMaxIterations,
		maxRounds:     DefaultMaxRounds,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
