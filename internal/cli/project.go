package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/pkg/adapters/memory"
	"github.com/aretw0/conductor/pkg/adapters/process"
	redisadapter "github.com/aretw0/conductor/pkg/adapters/redis"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/flowfile"
	"github.com/aretw0/conductor/pkg/graph"
	"github.com/aretw0/conductor/pkg/persistence/middleware"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/redis/go-redis/v9"
)

// workers is the loaded workers file: the registry plus the optional decider.
type workers struct {
	registry *registry.Registry
	decider  *process.Decider
}

func loadWorkers(path string, logger *slog.Logger) (*workers, error) {
	cfg, err := process.LoadFile(path)
	if err != nil {
		return nil, err
	}

	opts := []process.Option{process.WithBaseDir(filepath.Dir(path))}
	reg := registry.NewRegistry()
	if err := process.Register(reg, cfg.Workers, opts...); err != nil {
		return nil, err
	}
	reg.Seal()
	logger.Debug("Workers loaded", "path", path, "count", reg.Len())

	w := &workers{registry: reg}
	if cfg.Decider != nil {
		if w.decider, err = process.NewDecider(*cfg.Decider, opts...); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// project is a compiled flow file with its workers.
type project struct {
	def     *flowfile.Definition
	graph   *graph.Graph
	workers *workers
	options flowfile.RunOptions
}

func loadProject(flowPath, workersPath string, logger *slog.Logger) (*project, error) {
	w, err := loadWorkers(workersPath, logger)
	if err != nil {
		return nil, err
	}
	def, err := flowfile.Load(flowPath)
	if err != nil {
		return nil, err
	}
	g, err := def.Compile(w.registry)
	if err != nil {
		return nil, err
	}
	opts, err := def.RunOptions()
	if err != nil {
		return nil, err
	}
	return &project{def: def, graph: g, workers: w, options: opts}, nil
}

// flowEngine checks run input against the flow's declared inputs before starting a run.
type flowEngine struct {
	*conductor.Engine
	def *flowfile.Definition
}

func (e flowEngine) Run(ctx context.Context, input map[string]any) (*domain.Run, error) {
	initial, err := e.def.Prepare(input)
	if err != nil {
		return nil, err
	}
	return e.Engine.Run(ctx, initial)
}

// engine builds the engine for the compiled graph with the flow options applied first.
func (p *project) engine(opts ...conductor.Option) (flowEngine, error) {
	eng, err := conductor.New(p.graph, append(p.settings(), opts...)...)
	if err != nil {
		return flowEngine{}, err
	}
	return flowEngine{Engine: eng, def: p.def}, nil
}

// settings turns the flow options into engine options.
func (p *project) settings() []conductor.Option {
	var opts []conductor.Option
	if p.options.MaxIterations > 0 {
		opts = append(opts, conductor.WithMaxIterations(p.options.MaxIterations))
	}
	if p.options.MaxRounds > 0 {
		opts = append(opts, conductor.WithMaxRounds(p.options.MaxRounds))
	}
	if p.options.StepTimeout > 0 {
		opts = append(opts, conductor.WithStepTimeout(p.options.StepTimeout))
	}
	return opts
}

// openStore returns the Redis store and locker when a URL is given, otherwise an in-memory store.
// Redaction and encryption wrap whichever store is picked.
func openStore(opts StoreOptions, logger *slog.Logger) (ports.RunStore, ports.DistributedLocker, io.Closer, error) {
	mws, err := storeMiddleware(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	if opts.RedisURL == "" {
		return middleware.Chain(memory.NewStore(), mws...), memory.NewLocker(), nopCloser{}, nil
	}

	redisOpts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("redis unreachable: %w", err)
	}
	logger.Debug("Using redis store", "addr", redisOpts.Addr, "ttl", opts.TTL)

	var storeOpts []redisadapter.Option
	if opts.TTL > 0 {
		storeOpts = append(storeOpts, redisadapter.WithTTL(opts.TTL))
	}
	store := redisadapter.NewFromClient(client, storeOpts...)
	return middleware.Chain(store, mws...), redisadapter.NewLocker(client, ""), store, nil
}

func storeMiddleware(opts StoreOptions) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(opts.Redact) > 0 {
		pii, err := middleware.NewPIIMiddleware(opts.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if opts.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(opts.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key must be base64: %w", err)
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

// pendingGate parks every run at the gate; feedback arrives through Resume.
var pendingGate = ports.FeedbackFunc(func(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
	return domain.Feedback{}, domain.ErrFeedbackPending
})

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
