package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiffContext(t *testing.T) {
	tests := []struct {
		name string
		old  *Context
		new  *Context
		want Update
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  ContextFrom(map[string]any{"a": 1}),
			want: Update{"a": 1},
		},
		{
			name: "No Changes",
			old:  ContextFrom(map[string]any{"a": 1}),
			new:  ContextFrom(map[string]any{"a": 1}),
			want: nil,
		},
		{
			name: "Context Added & Modified",
			old:  ContextFrom(map[string]any{"a": 1, "b": "old"}),
			new:  ContextFrom(map[string]any{"a": 1, "b": "new", "c": true}),
			want: Update{"b": "new", "c": true},
		},
		{
			name: "Nested Values Compared Deeply",
			old:  ContextFrom(map[string]any{"list": []string{"x"}}),
			new:  ContextFrom(map[string]any{"list": []string{"x", "y"}}),
			want: Update{"list": []string{"x", "y"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiffContext(tt.old, tt.new)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DiffContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextJSONPreservesOrder(t *testing.T) {
	c := NewContext()
	c.Set("zeta", 1)
	c.Set("alpha", "two")
	c.Merge(Update{"mid": true})

	bytes, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got := string(bytes)
	if strings.Index(got, "zeta") > strings.Index(got, "alpha") || strings.Index(got, "alpha") > strings.Index(got, "mid") {
		t.Errorf("JSON should keep insertion order, got: %s", got)
	}

	var decoded Context
	if err := json.Unmarshal(bytes, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(decoded.Keys(), []string{"zeta", "alpha", "mid"}) {
		t.Errorf("Unmarshal lost order: %v", decoded.Keys())
	}
}
