package schema

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Type validates one Context value.
type Type interface {
	// Name is the type as written in a schema, e.g. "string" or "[int]".
	Name() string
	Validate(value any) error
}

type scalar struct {
	name  string
	check func(any) bool
}

func (t scalar) Name() string { return t.name }

func (t scalar) Validate(value any) error {
	if !t.check(value) {
		return fmt.Errorf("expected %s, got %T", t.name, value)
	}
	return nil
}

func isString(v any) bool { _, ok := v.(string); return ok }
func isBool(v any) bool   { _, ok := v.(bool); return ok }
func isMap(v any) bool    { _, ok := v.(map[string]any); return ok }
func isAny(v any) bool    { return true }

// isInt accepts whole floats, which is how JSON and YAML numbers often arrive.
func isInt(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return n == math.Trunc(n) && !math.IsInf(n, 0)
	}
	return false
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

var builtins = map[string]Type{
	"string": scalar{"string", isString},
	"int":    scalar{"int", isInt},
	"float":  scalar{"float", isFloat},
	"bool":   scalar{"bool", isBool},
	"map":    scalar{"map", isMap},
	"any":    scalar{"any", isAny},
}

// String validates strings.
func String() Type { return builtins["string"] }

// Int validates integers.
func Int() Type { return builtins["int"] }

// Float validates numbers.
func Float() Type { return builtins["float"] }

// Bool validates booleans.
func Bool() Type { return builtins["bool"] }

type list struct {
	elem Type
}

// List validates slices whose elements are all elem.
func List(elem Type) Type { return list{elem: elem} }

func (t list) Name() string { return "[" + t.elem.Name() + "]" }

func (t list) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected %s, got %T", t.Name(), value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

type optional struct {
	Type
}

// Optional lets the key be absent. A present value must still match t.
func Optional(t Type) Type { return optional{Type: t} }

func (t optional) Name() string { return t.Type.Name() + "?" }

type custom struct {
	name     string
	validate func(any) error
}

// Custom creates a named type with its own validation.
func Custom(name string, validate func(any) error) Type {
	return custom{name: name, validate: validate}
}

func (t custom) Name() string { return t.name }

func (t custom) Validate(value any) error { return t.validate(value) }

// ParseType reads a type string: a built-in name, "[T]" or either followed by "?".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if inner, ok := strings.CutSuffix(s, "?"); ok {
		t, err := ParseType(inner)
		if err != nil {
			return nil, err
		}
		return Optional(t), nil
	}
	if len(s) > 2 && s[0] == '[' && s[len(s)-1] == ']' {
		elem, err := ParseType(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return List(elem), nil
	}
	if t, ok := builtins[s]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unsupported type: %q", s)
}

// ParseTypeMap converts key -> type string pairs into a Schema.
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("input '%s': %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}
