package flowfile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Condition is a compiled when expression.
type Condition func(c *domain.Context) bool

// CompileCondition parses a when expression.
//
// Expressions use HCL syntax: context keys are variables (nested maps reached with dots), literals
// are numbers, strings, true, false and null, and the operators are ==, !=, <, <=, >, >=, !, && and
// ||, with parentheses for grouping. Strings may also be single-quoted. Function calls are rejected.
//
// Operands of !, && and || and the result itself are tested for truthiness: null, false, "", 0 and
// empty collections are false. Ordering compares two numbers or two strings and is false for
// anything else, missing keys included. An expression that fails to evaluate is false.
func CompileCondition(src string) (Condition, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	normalized, err := doubleQuote(src)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", src, err)
	}

	expr, diags := hclsyntax.ParseExpression([]byte(normalized), "when", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%q: %s", src, diags.Error())
	}
	diags = hclsyntax.VisitAll(expr, func(node hclsyntax.Node) hcl.Diagnostics {
		if call, ok := node.(*hclsyntax.FunctionCallExpr); ok {
			return hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Function calls are not supported",
				Detail:   fmt.Sprintf("%s() cannot be used in a when expression.", call.Name),
				Subject:  call.NameRange.Ptr(),
			}}
		}
		return nil
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%q: %s", src, diags.Error())
	}

	roots := rootNames(expr)
	expr = rewrite(expr)

	return func(c *domain.Context) bool {
		vars := make(map[string]cty.Value, len(roots))
		for _, name := range roots {
			vars[name] = toCty(c.Value(name))
		}
		val, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: conditionFuncs})
		if diags.HasErrors() {
			return false
		}
		return truthy(val)
	}, nil
}

func rootNames(expr hcl.Expression) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, traversal := range expr.Variables() {
		name := traversal.RootName()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// toCty converts a context value through its JSON form. Values that cannot be converted read as null.
func toCty(v any) cty.Value {
	null := cty.NullVal(cty.DynamicPseudoType)
	if v == nil {
		return null
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return null
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return null
	}
	val, err := ctyjson.Unmarshal(raw, ty)
	if err != nil {
		return null
	}
	return val
}

const truthyFunc = "truthy"

var orderingFuncs = map[*hclsyntax.Operation]string{
	hclsyntax.OpLessThan:           "lt",
	hclsyntax.OpLessThanOrEqual:    "le",
	hclsyntax.OpGreaterThan:        "gt",
	hclsyntax.OpGreaterThanOrEqual: "ge",
}

var conditionFuncs = map[string]function.Function{
	truthyFunc: function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "value", Type: cty.DynamicPseudoType, AllowNull: true, AllowDynamicType: true},
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.BoolVal(truthy(args[0])), nil
		},
	}),
	"lt": ordering(func(cmp int) bool { return cmp < 0 }),
	"le": ordering(func(cmp int) bool { return cmp <= 0 }),
	"gt": ordering(func(cmp int) bool { return cmp > 0 }),
	"ge": ordering(func(cmp int) bool { return cmp >= 0 }),
}

func ordering(test func(cmp int) bool) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "a", Type: cty.DynamicPseudoType, AllowNull: true, AllowDynamicType: true},
			{Name: "b", Type: cty.DynamicPseudoType, AllowNull: true, AllowDynamicType: true},
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			a, b := args[0], args[1]
			if a.IsNull() || b.IsNull() || !a.IsKnown() || !b.IsKnown() {
				return cty.False, nil
			}
			switch {
			case a.Type() == cty.Number && b.Type() == cty.Number:
				return cty.BoolVal(test(a.AsBigFloat().Cmp(b.AsBigFloat()))), nil
			case a.Type() == cty.String && b.Type() == cty.String:
				return cty.BoolVal(test(strings.Compare(a.AsString(), b.AsString()))), nil
			}
			return cty.False, nil
		},
	})
}

// rewrite routes logical operands through truthy and ordering operators through the lenient
// comparisons above.
func rewrite(expr hclsyntax.Expression) hclsyntax.Expression {
	switch e := expr.(type) {
	case *hclsyntax.UnaryOpExpr:
		e.Val = rewrite(e.Val)
		if e.Op == hclsyntax.OpLogicalNot {
			e.Val = call(truthyFunc, e.Val)
		}
	case *hclsyntax.BinaryOpExpr:
		e.LHS, e.RHS = rewrite(e.LHS), rewrite(e.RHS)
		if e.Op == hclsyntax.OpLogicalAnd || e.Op == hclsyntax.OpLogicalOr {
			e.LHS, e.RHS = call(truthyFunc, e.LHS), call(truthyFunc, e.RHS)
		}
		if name, ok := orderingFuncs[e.Op]; ok {
			return call(name, e.LHS, e.RHS)
		}
	case *hclsyntax.ParenthesesExpr:
		e.Expression = rewrite(e.Expression)
	case *hclsyntax.ConditionalExpr:
		e.Condition = call(truthyFunc, rewrite(e.Condition))
		e.TrueResult, e.FalseResult = rewrite(e.TrueResult), rewrite(e.FalseResult)
	}
	return expr
}

func call(name string, args ...hclsyntax.Expression) hclsyntax.Expression {
	rng := args[0].Range()
	if len(args) > 1 {
		rng = hcl.RangeBetween(rng, args[len(args)-1].Range())
	}
	return &hclsyntax.FunctionCallExpr{
		Name:            name,
		Args:            args,
		NameRange:       rng,
		OpenParenRange:  rng,
		CloseParenRange: rng,
	}
}

func truthy(v cty.Value) bool {
	if v.IsNull() || !v.IsKnown() {
		return false
	}
	ty := v.Type()
	switch {
	case ty == cty.Bool:
		return v.True()
	case ty == cty.String:
		return v.AsString() != ""
	case ty == cty.Number:
		return v.AsBigFloat().Sign() != 0
	case ty.IsObjectType():
		return len(ty.AttributeTypes()) > 0
	case ty.IsCollectionType() || ty.IsTupleType():
		return v.LengthInt() > 0
	}
	return true
}

// doubleQuote rewrites single-quoted strings as HCL string literals.
func doubleQuote(src string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(src); i++ {
		switch ch := src[i]; ch {
		case '"':
			end := i + 1
			for end < len(src) && src[end] != '"' {
				if src[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(src) {
				return "", fmt.Errorf("unterminated string")
			}
			b.WriteString(src[i : end+1])
			i = end
		case '\'':
			end := strings.IndexByte(src[i+1:], '\'')
			if end < 0 {
				return "", fmt.Errorf("unterminated string")
			}
			b.WriteByte('"')
			b.WriteString(literalEscaper.Replace(src[i+1 : i+1+end]))
			b.WriteByte('"')
			i += end + 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), nil
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", "$${", "%{", "%%{", "\n", `\n`)
