package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
)

// Step is a named unit of work executed inside a State.
// It returns a partial update that the engine merges into the run Context.
type Step interface {
	Name() string
	Execute(ctx context.Context, c *domain.Context) (domain.Update, error)
}

// Requirer is implemented by steps that need Context keys to be present before they run.
type Requirer interface {
	Requires() []string
}

// StepFunc is the function form of a step.
type StepFunc func(ctx context.Context, c *domain.Context) (domain.Update, error)

type funcStep struct {
	name     string
	fn       StepFunc
	requires []string
}

// Func wraps a function as a named Step. Required keys are checked before each execution.
func Func(name string, fn StepFunc, requires ...string) Step {
	return &funcStep{name: name, fn: fn, requires: requires}
}

func (s *funcStep) Name() string { return s.name }

func (s *funcStep) Requires() []string { return s.requires }

func (s *funcStep) Execute(ctx context.Context, c *domain.Context) (domain.Update, error) {
	return s.fn(ctx, c)
}

var placeholder = regexp.MustCompile(`{{\s*([A-Za-z0-9_.\-]+)\s*}}`)

// Interpolate replaces {{key}} placeholders with Context values. Unknown keys render empty.
func Interpolate(template string, c *domain.Context) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		v, ok := c.Get(key)
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

// Interpolator renders a worker task template against the Context.
type Interpolator func(ctx context.Context, text string, c *domain.Context) (string, error)

// DefaultInterpolator is Interpolate: {{key}} placeholders, unknown keys render empty.
func DefaultInterpolator(ctx context.Context, text string, c *domain.Context) (string, error) {
	return Interpolate(text, c), nil
}

// TemplateInterpolator renders text/template syntax with the Context map as data, e.g. {{ .topic }}
// or {{ if .draft }}revise{{ else }}write{{ end }}.
func TemplateInterpolator(ctx context.Context, text string, c *domain.Context) (string, error) {
	tmpl, err := template.New("task").Parse(text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, c.Map()); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type workerStep struct {
	name        string
	worker      ports.Worker
	task        string
	saveTo      string
	interpolate Interpolator
}

// WorkerOption configures a worker step.
type WorkerOption func(*workerStep)

// WithInterpolator renders the task with interp instead of DefaultInterpolator.
func WithInterpolator(interp Interpolator) WorkerOption {
	return func(s *workerStep) {
		if interp != nil {
			s.interpolate = interp
		}
	}
}

// WorkerStep runs a capability-backed worker inside a state.
// The task template is interpolated from the Context and the result is stored under saveTo
// (defaults to the step name).
func WorkerStep(name string, worker ports.Worker, task string, saveTo string, opts ...WorkerOption) Step {
	if saveTo == "" {
		saveTo = name
	}
	s := &workerStep{name: name, worker: worker, task: task, saveTo: saveTo, interpolate: DefaultInterpolator}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *workerStep) Name() string { return s.name }

func (s *workerStep) Execute(ctx context.Context, c *domain.Context) (domain.Update, error) {
	task, err := s.interpolate(ctx, s.task, c)
	if err != nil {
		return nil, fmt.Errorf("interpolate task: %w", err)
	}
	result, err := s.worker.Invoke(ctx, task, c)
	if err != nil {
		return nil, err
	}
	return domain.Update{s.saveTo: result}, nil
}
