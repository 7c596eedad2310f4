package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/conductor"
	httpadapter "github.com/aretw0/conductor/pkg/adapters/http"
	"github.com/aretw0/conductor/pkg/adapters/mcp"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Serve exposes the flow over HTTP with SSE events and Prometheus metrics until ctx ends.
func Serve(ctx context.Context, opts ServeOptions, env Env) error {
	p, err := loadProject(opts.FlowPath, opts.WorkersPath, env.Logger)
	if err != nil {
		return err
	}
	store, locker, closer, err := openStore(opts.Store, env.Logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return err
	}
	streams := httpadapter.NewStreamManager()

	engineOpts := []conductor.Option{
		conductor.WithLogger(env.Logger),
		conductor.WithLifecycleHooks(domain.CombineHooks(
			observability.LogHooks(env.Logger),
			metrics.Hooks(),
			streams.Hooks(),
		)),
		conductor.WithStore(store),
		conductor.WithLocker(locker),
	}
	if opts.Gate {
		engineOpts = append(engineOpts, conductor.WithFeedback(pendingGate))
	}
	eng, err := p.engine(engineOpts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: opts.Addr,
		Handler: httpadapter.NewHandler(eng,
			httpadapter.WithStreams(streams),
			httpadapter.WithMetrics(reg),
			httpadapter.WithVersion(strings.TrimSpace(conductor.Version)),
			httpadapter.WithLogger(env.Logger),
		),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printSystemMessage(env.Stdout, "Serving '%s' on %s", p.graph.Name, srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			env.Logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		printSystemMessage(env.Stdout, "Server stopped gracefully")
		return nil
	})
	return g.Wait()
}

// ServeMCP exposes the flow, and the decider when the workers file has one, as an MCP server.
func ServeMCP(ctx context.Context, opts ServeOptions, env Env) error {
	p, err := loadProject(opts.FlowPath, opts.WorkersPath, env.Logger)
	if err != nil {
		return err
	}
	store, locker, closer, err := openStore(opts.Store, env.Logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	common := []conductor.Option{
		conductor.WithLogger(env.Logger),
		conductor.WithLifecycleHooks(observability.LogHooks(env.Logger)),
		conductor.WithStore(store),
		conductor.WithLocker(locker),
	}
	engineOpts := slices.Clone(common)
	if opts.Gate {
		engineOpts = append(engineOpts, conductor.WithFeedback(pendingGate))
	}
	eng, err := p.engine(engineOpts...)
	if err != nil {
		return err
	}

	var serverOpts []mcp.Option
	if p.workers.decider != nil && p.workers.registry.Len() > 0 {
		d, err := conductor.NewDelegator(p.workers.registry, p.workers.decider, append(p.settings(), common...)...)
		if err != nil {
			return err
		}
		serverOpts = append(serverOpts, mcp.WithDelegator(d))
	}
	srv := mcp.NewServer(eng, serverOpts...)

	switch opts.Transport {
	case "", "stdio":
		env.Logger.Info("Starting Conductor MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		env.Logger.Info("Starting Conductor MCP Server (SSE)", "port", opts.Port)
		return srv.ServeSSE(ctx, opts.Port)
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", opts.Transport)
	}
}
