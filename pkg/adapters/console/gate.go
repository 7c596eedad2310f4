package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/conductor/pkg/domain"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// Gate is a FeedbackSource that asks a person on a terminal.
//
// An empty line continues, EXIT stops the run and anything else becomes the instruction
// stored under update_instruction. When input ends the run continues without an instruction.
type Gate struct {
	reader   *bufio.Reader
	writer   io.Writer
	renderer Renderer

	lines     chan line
	startOnce sync.Once
	mu        sync.Mutex
}

type line struct {
	text string
	err  error
}

// Option configures a Gate.
type Option func(*Gate)

// WithRenderer renders the status shown before each prompt.
func WithRenderer(r Renderer) Option {
	return func(g *Gate) {
		g.renderer = r
	}
}

// NewGate creates a Gate reading r and prompting on w.
func NewGate(r io.Reader, w io.Writer, opts ...Option) *Gate {
	g := &Gate{reader: bufio.NewReader(r), writer: w}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// pump reads lines in the background so a blocked read never outlives a cancelled run.
func (g *Gate) pump() {
	for {
		text, err := g.reader.ReadString('\n')
		if text != "" || err == nil {
			g.lines <- line{text: text}
		}
		if err != nil {
			if err != io.EOF {
				g.lines <- line{err: err}
			}
			close(g.lines)
			return
		}
	}
}

// RequestFeedback satisfies ports.FeedbackSource.
func (g *Gate) RequestFeedback(ctx context.Context, req domain.FeedbackRequest) (domain.Feedback, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.startOnce.Do(func() {
		g.lines = make(chan line)
		go g.pump()
	})

	g.show(req)
	for {
		fmt.Fprint(g.writer, "> ")
		select {
		case <-ctx.Done():
			return domain.Feedback{}, ctx.Err()
		case in, ok := <-g.lines:
			if !ok {
				fmt.Fprintln(g.writer)
				return domain.Feedback{}, nil
			}
			if in.err != nil {
				return domain.Feedback{}, fmt.Errorf("read feedback: %w", in.err)
			}
			text, err := SanitizeInput(strings.TrimSpace(in.text))
			if err != nil {
				fmt.Fprintf(g.writer, "Input rejected: %v\n", err)
				continue
			}
			if strings.EqualFold(text, domain.ExitMarker) {
				return domain.Feedback{Exit: true}, nil
			}
			return domain.Feedback{Instruction: text}, nil
		}
	}
}

func (g *Gate) show(req domain.FeedbackRequest) {
	md := Summary(req)
	if g.renderer != nil {
		if out, err := g.renderer(md); err == nil {
			md = out
		}
	}
	fmt.Fprintln(g.writer, md)
	fmt.Fprintf(g.writer, "Press Enter to continue, type an instruction, or %s to stop.\n", domain.ExitMarker)
}

// Summary formats a feedback request as markdown.
func Summary(req domain.FeedbackRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Run %s paused at %s\n\n", req.RunID, req.Position)

	var latest any
	switch {
	case req.Mode == domain.ModeDelegation && len(req.Transcript) > 0:
		last := req.Transcript[len(req.Transcript)-1]
		fmt.Fprintf(&b, "Last round: **%s** on _%s_\n\n", last.Worker, last.Task)
		latest = last.Result
		if last.Error != "" {
			latest = "error: " + last.Error
		}
	case req.Answer != nil:
		latest = req.Answer
	default:
		keys := make([]string, 0, len(req.Context))
		for k := range req.Context {
			keys = append(keys, k)
		}
		if len(keys) > 0 {
			slices.Sort(keys)
			fmt.Fprintf(&b, "Context keys: %s\n", strings.Join(keys, ", "))
		}
	}
	if latest != nil {
		fmt.Fprintf(&b, "%v\n", latest)
	}
	return b.String()
}
