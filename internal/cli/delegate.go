package cli

import (
	"context"
	"errors"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/observability"
)

var errNoDecider = errors.New("workers file declares no decider")

// Delegate pursues a goal with the workers file's decider, or resumes a parked delegation run.
func Delegate(ctx context.Context, opts DelegateOptions, env Env) error {
	if opts.Resume != "" && opts.Store.RedisURL == "" {
		return errResumeNeedsStore
	}
	if opts.Resume == "" && opts.Goal == "" {
		return errors.New("--goal is required")
	}
	initial, err := parseContext(opts.Context)
	if err != nil {
		return err
	}

	w, err := loadWorkers(opts.WorkersPath, env.Logger)
	if err != nil {
		return err
	}
	if w.decider == nil {
		return errNoDecider
	}
	store, locker, closer, err := openStore(opts.Store, env.Logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	delegatorOpts := []conductor.Option{
		conductor.WithLogger(env.Logger),
		conductor.WithLifecycleHooks(observability.LogHooks(env.Logger)),
		conductor.WithStore(store),
		conductor.WithLocker(locker),
	}
	if opts.MaxRounds > 0 {
		delegatorOpts = append(delegatorOpts, conductor.WithMaxRounds(opts.MaxRounds))
	}
	if fb := gate(opts.Gate, env); fb != nil {
		delegatorOpts = append(delegatorOpts, conductor.WithFeedback(fb))
	}
	d, err := conductor.NewDelegator(w.registry, w.decider, delegatorOpts...)
	if err != nil {
		return err
	}

	var run *domain.Run
	if opts.Resume != "" {
		run, err = d.Resume(ctx, opts.Resume, domain.Feedback{Instruction: opts.Instruction, Exit: opts.Exit})
	} else {
		run, err = d.Run(ctx, opts.Goal, initial)
	}
	if run == nil {
		return err
	}
	return finish(ctx, run, err, opts.JSON, env)
}
