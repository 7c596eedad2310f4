package flowfile

import (
	"fmt"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/graph"
	"github.com/aretw0/conductor/pkg/schema"
	"github.com/mitchellh/mapstructure"
)

// Definition is a format-neutral flow document.
type Definition struct {
	Name  string `yaml:"name"`
	Entry string `yaml:"entry"`
	// Defaults seed the initial Context; run input overrides them.
	Defaults map[string]any `yaml:"defaults"`
	// Inputs declares typed keys the initial Context must hold, e.g. topic: string.
	Inputs map[string]string `yaml:"inputs"`
	// Options is a loose block decoded by RunOptions.
	Options map[string]any `yaml:"options"`
	States  []StateDef     `yaml:"states"`
}

// StateDef describes one state.
type StateDef struct {
	Name   string      `yaml:"name"`
	Steps  []StepDef   `yaml:"steps"`
	Next   string      `yaml:"next"`
	Branch []BranchDef `yaml:"branch"`
}

// StepDef is exactly one of: a worker call, a literal set, or a counter increment.
type StepDef struct {
	Name     string         `yaml:"name"`
	Worker   string         `yaml:"worker"`
	Task     string         `yaml:"task"`
	SaveTo   string         `yaml:"save_to"`
	Requires []string       `yaml:"requires"`
	Set      map[string]any `yaml:"set"`
	Incr     string         `yaml:"incr"`
}

// BranchDef is one rule of a conditional transition. Rules are tried in order; a rule
// without When always matches.
type BranchDef struct {
	When string `yaml:"when" hcl:"when,optional"`
	To   string `yaml:"to" hcl:"to"`
}

// RunOptions are the engine settings a flow may carry.
type RunOptions struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	MaxRounds     int           `mapstructure:"max_rounds"`
	StepTimeout   time.Duration `mapstructure:"step_timeout"`
	// Interpolation selects how task and set strings are rendered: "placeholder" ({{key}}, the
	// default) or "template" (text/template, {{ .key }}).
	Interpolation string `mapstructure:"interpolation"`
}

// Interpolator returns the renderer named by Interpolation.
func (o RunOptions) Interpolator() (graph.Interpolator, error) {
	switch o.Interpolation {
	case "", "placeholder":
		return graph.DefaultInterpolator, nil
	case "template":
		return graph.TemplateInterpolator, nil
	default:
		return nil, fmt.Errorf("unknown interpolation %q: expected placeholder or template", o.Interpolation)
	}
}

// RunOptions decodes the options block. Unknown keys are rejected.
func (d *Definition) RunOptions() (RunOptions, error) {
	var opts RunOptions
	if len(d.Options) == 0 {
		return opts, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(d.Options); err != nil {
		return opts, fmt.Errorf("flow '%s' options: %w", d.Name, err)
	}
	return opts, nil
}

// InputSchema parses the declared inputs.
func (d *Definition) InputSchema() (schema.Schema, error) {
	s, err := schema.ParseTypeMap(d.Inputs)
	if err != nil {
		return nil, fmt.Errorf("flow '%s': %w", d.Name, err)
	}
	return s, nil
}

// Prepare merges run input over the defaults and checks the result against the declared inputs.
func (d *Definition) Prepare(input map[string]any) (map[string]any, error) {
	initial := d.InitialContext(input)
	s, err := d.InputSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(s, domain.ContextFrom(initial)); err != nil {
		return nil, fmt.Errorf("flow '%s': %w", d.Name, err)
	}
	return initial, nil
}

// InitialContext merges run input over the flow defaults.
func (d *Definition) InitialContext(input map[string]any) map[string]any {
	out := make(map[string]any, len(d.Defaults)+len(input))
	for k, v := range d.Defaults {
		out[k] = v
	}
	for k, v := range input {
		out[k] = v
	}
	return out
}
