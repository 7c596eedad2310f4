package mermaid

import (
	"fmt"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/graph"
)

// Overlay contains run data to visualize on the graph.
type Overlay struct {
	Visited []string
	Current string
}

// OverlayFor builds an overlay from a run's history.
func OverlayFor(run *domain.Run) *Overlay {
	if run == nil {
		return nil
	}
	o := &Overlay{Visited: run.History}
	if !run.Status.Terminal() {
		o.Current = run.Current
	}
	return o
}

// Generate produces a Mermaid flowchart for g.
//
// The entry state is drawn as a circle and END as a double circle. Static transitions are
// solid arrows; each member of a conditional allow-set gets a dotted arrow. Step names are
// listed under the state name.
func Generate(g *graph.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	endUsed := false
	for _, st := range g.States() {
		id := sanitizeID(st.Name)

		opener, closer := "[", "]"
		if st.Name == g.Entry {
			opener, closer = "((", "))"
		}

		label := st.Name
		if len(st.Steps) > 0 {
			names := make([]string, 0, len(st.Steps))
			for _, step := range st.Steps {
				names = append(names, step.Name())
			}
			label += "<br/><small>" + strings.Join(names, ", ") + "</small>"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, escape(label), closer)

		arrow := "-->"
		if st.Transition.IsConditional() {
			arrow = "-.->"
		}
		for _, target := range st.Transition.Targets() {
			if target == domain.END {
				endUsed = true
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", id, arrow, sanitizeID(target))
		}
	}
	if endUsed {
		fmt.Fprintf(&sb, "    %s(((\"END\")))\n", sanitizeID(domain.END))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.Visited {
			id := sanitizeID(name)
			if id != "" && !seen[id] {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", id)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeID(overlay.Current))
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
