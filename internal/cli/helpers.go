package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/conductor/internal/presentation/tui"
	"github.com/aretw0/conductor/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// Unlike signal.NotifyContext it remembers which signal fired.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func parseContext(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var initial map[string]any
	if err := json.Unmarshal([]byte(raw), &initial); err != nil {
		return nil, fmt.Errorf("error parsing --context JSON: %w", err)
	}
	return initial, nil
}

// report prints the run as JSON or as a rendered report.
func report(w io.Writer, run *domain.Run, asJSON bool, width int) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	out, err := tui.NewRenderer(width)(tui.RunReport(run))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

// logCompletion tells the user how the run ended and how to continue a parked run.
func logCompletion(w io.Writer, run *domain.Run, sig os.Signal) {
	switch run.Status {
	case domain.StatusAwaitingInput:
		printSystemMessage(w, "Run '%s' awaiting input at '%s'. Resume with --resume %s.", run.ID, position(run), run.ID)
	case domain.StatusCancelled:
		if sig == os.Interrupt {
			fmt.Fprintf(w, "> [CTRL+C]\n")
			printSystemMessage(w, "Interrupted at '%s'.", position(run))
			return
		}
		printSystemMessage(w, "Terminated at '%s'.", position(run))
	case domain.StatusFailed:
		printSystemMessage(w, "Failed at '%s'.", position(run))
	default:
		printSystemMessage(w, "Finished run '%s'.", run.ID)
	}
}

func position(run *domain.Run) string {
	if run.Mode == domain.ModeDelegation {
		return fmt.Sprintf("round %d", len(run.Transcript))
	}
	return run.Current
}

// handleExecutionError turns interruptions into a clean exit.
func handleExecutionError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
