package flowfile

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/dsl"
	"github.com/aretw0/conductor/pkg/graph"
	"github.com/aretw0/conductor/pkg/ports"
)

// WorkerLookup resolves worker names used by flow steps. *registry.Registry satisfies it.
type WorkerLookup interface {
	Lookup(name string) (ports.Worker, bool)
}

// endAliases are the spellings of the terminal state accepted in flow files.
var endAliases = []string{domain.END, "END"}

func target(name string) string {
	if slices.Contains(endAliases, name) {
		return domain.END
	}
	return name
}

// Compile turns the definition into a validated graph, binding worker steps through workers.
func (d *Definition) Compile(workers WorkerLookup) (*graph.Graph, error) {
	if len(d.States) == 0 {
		return nil, &graph.ValidationError{Problems: []string{fmt.Sprintf("flow '%s' declares no states", d.Name)}}
	}

	b := dsl.New(d.Name)
	var problems []string
	if _, err := d.InputSchema(); err != nil {
		problems = append(problems, err.Error())
	}
	interp := graph.DefaultInterpolator
	if opts, err := d.RunOptions(); err != nil {
		problems = append(problems, err.Error())
	} else if interp, err = opts.Interpolator(); err != nil {
		problems = append(problems, fmt.Sprintf("flow '%s' options: %v", d.Name, err))
		interp = graph.DefaultInterpolator
	}
	for _, st := range d.States {
		sb := b.Add(st.Name)
		for i, step := range st.Steps {
			s, err := compileStep(st.Name, i, step, workers, interp)
			if err != nil {
				problems = append(problems, err.Error())
				continue
			}
			sb.Do(s)
		}

		switch {
		case st.Next != "" && len(st.Branch) > 0:
			problems = append(problems, fmt.Sprintf("state '%s': next and branch are mutually exclusive", st.Name))
		case len(st.Branch) > 0:
			fn, allowed, err := compileBranch(st.Branch)
			if err != nil {
				problems = append(problems, fmt.Sprintf("state '%s': %v", st.Name, err))
				continue
			}
			sb.Branch(fn, allowed...)
		case st.Next != "":
			sb.Go(target(st.Next))
		default:
			problems = append(problems, fmt.Sprintf("state '%s': missing next or branch", st.Name))
		}
	}
	if len(problems) > 0 {
		return nil, &graph.ValidationError{Problems: problems}
	}
	if d.Entry != "" {
		b.Entry(d.Entry)
	}
	return b.Build()
}

func compileStep(state string, idx int, def StepDef, workers WorkerLookup, interp graph.Interpolator) (graph.Step, error) {
	kinds := 0
	for _, set := range []bool{def.Worker != "", len(def.Set) > 0, def.Incr != ""} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, fmt.Errorf("state '%s' step %d: exactly one of worker, set or incr is required", state, idx)
	}

	name := def.Name
	switch {
	case def.Worker != "":
		w, ok := workers.Lookup(def.Worker)
		if !ok {
			return nil, fmt.Errorf("state '%s' step %d: %w", state, idx, &domain.UnknownWorkerError{Worker: def.Worker})
		}
		if name == "" {
			name = def.Worker
		}
		saveTo := def.SaveTo
		if saveTo == "" {
			saveTo = def.Worker
		}
		return requiring{Step: graph.WorkerStep(name, w, def.Task, saveTo, graph.WithInterpolator(interp)), keys: def.Requires}, nil

	case len(def.Set) > 0:
		if name == "" {
			name = "set"
		}
		values := def.Set
		return graph.Func(name, func(ctx context.Context, c *domain.Context) (domain.Update, error) {
			u := make(domain.Update, len(values))
			for k, v := range values {
				if s, ok := v.(string); ok {
					rendered, err := interp(ctx, s, c)
					if err != nil {
						return nil, fmt.Errorf("set %q: %w", k, err)
					}
					v = rendered
				}
				u[k] = v
			}
			return u, nil
		}, def.Requires...), nil

	default:
		if name == "" {
			name = "incr_" + def.Incr
		}
		key := def.Incr
		return graph.Func(name, func(ctx context.Context, c *domain.Context) (domain.Update, error) {
			switch n := c.Value(key).(type) {
			case nil:
				return domain.Update{key: 1}, nil
			case int:
				return domain.Update{key: n + 1}, nil
			case float64:
				return domain.Update{key: n + 1}, nil
			default:
				return nil, fmt.Errorf("cannot increment %q holding %T", key, n)
			}
		}, def.Requires...), nil
	}
}

func compileBranch(rules []BranchDef) (graph.DecisionFunc, []string, error) {
	type rule struct {
		cond Condition
		to   string
	}
	compiled := make([]rule, 0, len(rules))
	var allowed []string
	for i, r := range rules {
		if r.To == "" {
			return nil, nil, fmt.Errorf("branch rule %d: missing target", i)
		}
		to := target(r.To)
		var cond Condition
		if r.When != "" {
			c, err := CompileCondition(r.When)
			if err != nil {
				return nil, nil, fmt.Errorf("branch rule %d: %w", i, err)
			}
			cond = c
		}
		compiled = append(compiled, rule{cond: cond, to: to})
		if to != domain.END && !slices.Contains(allowed, to) {
			allowed = append(allowed, to)
		}
	}

	if len(allowed) == 0 {
		allowed = []string{domain.END}
	}

	// No matching rule ends the run.
	fn := func(c *domain.Context) string {
		for _, r := range compiled {
			if r.cond == nil || r.cond(c) {
				return r.to
			}
		}
		return domain.END
	}
	return fn, allowed, nil
}

// requiring attaches required Context keys to a step.
type requiring struct {
	graph.Step
	keys []string
}

func (r requiring) Requires() []string { return r.keys }
