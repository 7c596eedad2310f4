package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/conductor/internal/presentation/mermaid"
)

// Validate compiles the flow and reports unreachable states. Unreachable states are warnings.
func Validate(flowPath, workersPath string, w io.Writer, logger *slog.Logger) error {
	p, err := loadProject(flowPath, workersPath, logger)
	if err != nil {
		return err
	}
	for _, name := range p.graph.Unreachable() {
		fmt.Fprintf(w, "warning: state '%s' is unreachable from '%s'\n", name, p.graph.Entry)
	}
	fmt.Fprintf(w, "Flow '%s' is valid (%d states).\n", p.graph.Name, len(p.graph.States()))
	return nil
}

// Graph prints the flow as a Mermaid flowchart. With runID the stored run's path is highlighted.
func Graph(ctx context.Context, flowPath, workersPath, runID string, store StoreOptions, w io.Writer, logger *slog.Logger) error {
	p, err := loadProject(flowPath, workersPath, logger)
	if err != nil {
		return err
	}

	var overlay *mermaid.Overlay
	if runID != "" {
		if store.RedisURL == "" {
			return fmt.Errorf("--run requires --redis")
		}
		s, _, closer, err := openStore(store, logger)
		if err != nil {
			return err
		}
		defer closer.Close()
		run, err := s.Load(ctx, runID)
		if err != nil {
			return err
		}
		overlay = mermaid.OverlayFor(run)
	}

	_, err = fmt.Fprint(w, mermaid.Generate(p.graph, overlay))
	return err
}
