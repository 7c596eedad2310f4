package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/internal/presentation/tui"
	"github.com/aretw0/conductor/pkg/adapters/console"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/observability"
	"github.com/aretw0/conductor/pkg/ports"
)

var errResumeNeedsStore = errors.New("resuming a run requires --redis")

// gate picks the feedback source: the console when attended, parking otherwise.
func gate(enabled bool, env Env) ports.FeedbackSource {
	if !enabled {
		return nil
	}
	if env.Interactive {
		return console.NewGate(env.Stdin, env.Stdout, console.WithRenderer(tui.NewRenderer(env.Width)))
	}
	return pendingGate
}

// Run executes a flow file, or resumes one of its parked runs.
func Run(ctx context.Context, opts RunOptions, env Env) error {
	if opts.Resume != "" && opts.Store.RedisURL == "" {
		return errResumeNeedsStore
	}
	initial, err := parseContext(opts.Context)
	if err != nil {
		return err
	}

	p, err := loadProject(opts.FlowPath, opts.WorkersPath, env.Logger)
	if err != nil {
		return err
	}
	store, locker, closer, err := openStore(opts.Store, env.Logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	engineOpts := []conductor.Option{
		conductor.WithLogger(env.Logger),
		conductor.WithLifecycleHooks(observability.LogHooks(env.Logger)),
		conductor.WithStore(store),
		conductor.WithLocker(locker),
	}
	if fb := gate(opts.Gate, env); fb != nil {
		engineOpts = append(engineOpts, conductor.WithFeedback(fb))
	}
	eng, err := p.engine(engineOpts...)
	if err != nil {
		return err
	}

	var run *domain.Run
	if opts.Resume != "" {
		run, err = eng.Resume(ctx, opts.Resume, domain.Feedback{Instruction: opts.Instruction, Exit: opts.Exit})
	} else {
		run, err = eng.Run(ctx, initial)
	}
	if run == nil {
		return err
	}
	return finish(ctx, run, err, opts.JSON, env)
}

func finish(ctx context.Context, run *domain.Run, runErr error, asJSON bool, env Env) error {
	if err := report(env.Stdout, run, asJSON, env.Width); err != nil {
		return fmt.Errorf("failed to print run: %w", err)
	}
	if !asJSON {
		var sig os.Signal
		if sc, ok := ctx.(*SignalContext); ok {
			sig = sc.Signal()
		}
		logCompletion(env.Stdout, run, sig)
	}
	return handleExecutionError(runErr)
}
