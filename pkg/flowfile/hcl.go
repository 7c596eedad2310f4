package flowfile

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

type hclFlow struct {
	Name     string     `hcl:"name,optional"`
	Entry    string     `hcl:"entry,optional"`
	Defaults cty.Value  `hcl:"defaults,optional"`
	Inputs   cty.Value  `hcl:"inputs,optional"`
	Options  cty.Value  `hcl:"options,optional"`
	States   []hclState `hcl:"state,block"`
}

type hclState struct {
	Name   string      `hcl:"name,label"`
	Next   string      `hcl:"next,optional"`
	Steps  []hclStep   `hcl:"step,block"`
	Branch []BranchDef `hcl:"branch,block"`
}

type hclStep struct {
	Name     string    `hcl:"name,label"`
	Worker   string    `hcl:"worker,optional"`
	Task     string    `hcl:"task,optional"`
	SaveTo   string    `hcl:"save_to,optional"`
	Requires []string  `hcl:"requires,optional"`
	Set      cty.Value `hcl:"set,optional"`
	Incr     string    `hcl:"incr,optional"`
}

func parseHCL(data []byte, filename string) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %s", filename, diags.Error())
	}

	var flow hclFlow
	if diags := gohcl.DecodeBody(file.Body, nil, &flow); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %s", filename, diags.Error())
	}

	def := &Definition{Name: flow.Name, Entry: flow.Entry}
	var err error
	if def.Defaults, err = objectToMap(flow.Defaults); err != nil {
		return nil, fmt.Errorf("%s: defaults: %w", filename, err)
	}
	if def.Options, err = objectToMap(flow.Options); err != nil {
		return nil, fmt.Errorf("%s: options: %w", filename, err)
	}
	inputs, err := objectToMap(flow.Inputs)
	if err != nil {
		return nil, fmt.Errorf("%s: inputs: %w", filename, err)
	}
	for k, v := range inputs {
		typ, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: input '%s': type must be a string", filename, k)
		}
		if def.Inputs == nil {
			def.Inputs = make(map[string]string, len(inputs))
		}
		def.Inputs[k] = typ
	}

	for _, hs := range flow.States {
		st := StateDef{Name: hs.Name, Next: hs.Next, Branch: hs.Branch}
		for _, step := range hs.Steps {
			set, err := objectToMap(step.Set)
			if err != nil {
				return nil, fmt.Errorf("%s: state '%s' step '%s': %w", filename, hs.Name, step.Name, err)
			}
			st.Steps = append(st.Steps, StepDef{
				Name:     step.Name,
				Worker:   step.Worker,
				Task:     step.Task,
				SaveTo:   step.SaveTo,
				Requires: step.Requires,
				Set:      set,
				Incr:     step.Incr,
			})
		}
		def.States = append(def.States, st)
	}
	return def, nil
}

func objectToMap(v cty.Value) (map[string]any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	native, err := ctyToNative(v)
	if err != nil {
		return nil, err
	}
	m, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %s", v.Type().FriendlyName())
	}
	return m, nil
}

// ctyToNative converts a cty value to plain Go values. Whole numbers become int.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i), nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("convert number: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			n, err := ctyToNative(el)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, el := it.Element()
			n, err := ctyToNative(el)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", k.AsString(), err)
			}
			out[k.AsString()] = n
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
