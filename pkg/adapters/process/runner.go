package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/registry"
)

// Environment variables handed to every process.
const (
	EnvTask      = "CONDUCTOR_TASK"
	EnvArgPrefix = "CONDUCTOR_ARG_"
)

// Worker runs an allow-listed command as a capability.
//
// Context values are never passed as command flags. They reach the process as
// CONDUCTOR_ARG_<KEY> environment variables and, in full, as a JSON document on stdin:
//
//	{"task": "...", "context": {...}}
//
// Stdout is the result. Output that looks like a JSON object or array is decoded.
type Worker struct {
	cfg     Config
	baseDir string
	timeout time.Duration
	grace   time.Duration
}

// DefaultGracePeriod is how long a cancelled process may take to exit after an interrupt
// before it is killed.
const DefaultGracePeriod = 5 * time.Second

// Option configures a Worker.
type Option func(*Worker)

// WithBaseDir sets the working directory used when the config leaves Dir empty.
func WithBaseDir(dir string) Option {
	return func(w *Worker) {
		w.baseDir = dir
	}
}

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(w *Worker) {
		w.grace = d
	}
}

// NewWorker creates a Worker from a validated config entry.
func NewWorker(cfg Config, opts ...Option) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, _ := cfg.timeout()
	w := &Worker{cfg: cfg, timeout: timeout, grace: DefaultGracePeriod}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Name returns the configured worker name.
func (w *Worker) Name() string { return w.cfg.Name }

// Invoke satisfies ports.Worker.
func (w *Worker) Invoke(ctx context.Context, task string, c *domain.Context) (any, error) {
	input, err := json.Marshal(struct {
		Task    string          `json:"task"`
		Context *domain.Context `json:"context"`
	}{Task: task, Context: c})
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}

	env := []string{EnvTask + "=" + task}
	for _, k := range c.Keys() {
		env = append(env, EnvArgPrefix+envKey(k)+"="+envValue(c.Value(k)))
	}

	out, err := w.exec(ctx, bytes.NewReader(input), env)
	if err != nil {
		return nil, err
	}
	return decodeOutput(out), nil
}

func (w *Worker) exec(ctx context.Context, stdin io.Reader, env []string) (string, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, w.cfg.Command, w.cfg.Args...)
	cmd.Dir = w.baseDir
	if w.cfg.Dir != "" {
		cmd.Dir = w.cfg.Dir
	}
	cmd.Env = cmd.Environ()
	for k, v := range w.cfg.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdin = stdin
	// Interrupt first; the process is killed once the grace period runs out.
	cmd.Cancel = func() error {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = w.grace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("process '%s': %w", w.cfg.Name, ctx.Err())
		}
		return "", fmt.Errorf("process '%s' failed: %w: %s", w.cfg.Name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Decider runs a command as the delegation decision maker. The DecisionRequest is written to
// stdin as JSON and stdout is returned verbatim as the decision text.
type Decider struct {
	w *Worker
}

// NewDecider creates a Decider. The config name defaults to "decider".
func NewDecider(cfg Config, opts ...Option) (*Decider, error) {
	if cfg.Name == "" {
		cfg.Name = "decider"
	}
	w, err := NewWorker(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Decider{w: w}, nil
}

// Decide satisfies ports.DecisionMaker.
func (d *Decider) Decide(ctx context.Context, req domain.DecisionRequest) (string, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode decision request: %w", err)
	}
	out, err := d.w.exec(ctx, bytes.NewReader(input), nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Register adds every configured worker to reg.
func Register(reg *registry.Registry, cfgs []Config, opts ...Option) error {
	for _, cfg := range cfgs {
		w, err := NewWorker(cfg, opts...)
		if err != nil {
			return err
		}
		if err := reg.Register(cfg.Name, cfg.Summary, w); err != nil {
			return err
		}
	}
	return nil
}

// envKey maps a Context key to an environment variable suffix.
func envKey(k string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, k)
}

// envValue renders primitives directly and everything else as JSON.
func envValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}

func decodeOutput(out string) any {
	trimmed := strings.TrimSpace(out)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return trimmed
}
