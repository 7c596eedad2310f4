package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// Output falls back to the raw markdown when no renderer can be built.
func NewRenderer(width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// RunReport formats the outcome of a run as markdown.
func RunReport(run *domain.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run `%s`\n\n", run.ID)
	fmt.Fprintf(&b, "- **Mode:** %s\n- **Status:** %s\n", run.Mode, run.Status)
	if run.Goal != "" {
		fmt.Fprintf(&b, "- **Goal:** %s\n", run.Goal)
	}
	if len(run.History) > 0 {
		fmt.Fprintf(&b, "- **Path:** %s\n", strings.Join(run.History, " → "))
	}
	fmt.Fprintf(&b, "- **Steps:** %d, **Transitions:** %d\n", run.Steps, run.Transitions)
	if run.Error != "" {
		fmt.Fprintf(&b, "- **Error:** %s\n", run.Error)
	}

	if len(run.Transcript) > 0 {
		b.WriteString("\n## Transcript\n\n| Round | Worker | Task | Result |\n|---|---|---|---|\n")
		for _, e := range run.Transcript {
			result := fmt.Sprint(e.Result)
			if e.Error != "" {
				result = "error: " + e.Error
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", e.Round, e.Worker, cell(e.Task), cell(result))
		}
	}

	if run.Answer != nil {
		fmt.Fprintf(&b, "\n## Answer\n\n%v\n", run.Answer)
	}

	if keys := run.Context.Keys(); len(keys) > 0 {
		b.WriteString("\n## Context\n\n| Key | Value |\n|---|---|\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "| %s | %s |\n", k, cell(fmt.Sprint(run.Context.Value(k))))
		}
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}
