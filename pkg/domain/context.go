package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Update is a partial Context update returned by a step, a worker round or a feedback gate.
type Update map[string]any

// Context is the ordered key/value store threaded through a Run.
//
// Keys keep their first insertion position. Merging an Update overwrites existing keys in place
// and appends new ones; keys are never removed implicitly.
type Context struct {
	values *orderedmap.OrderedMap[string, any]
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{values: orderedmap.New[string, any]()}
}

// ContextFrom builds a Context from a plain map. Keys are inserted in lexical order.
func ContextFrom(m map[string]any) *Context {
	c := NewContext()
	c.Merge(m)
	return c
}

func (c *Context) ensure() *orderedmap.OrderedMap[string, any] {
	if c.values == nil {
		c.values = orderedmap.New[string, any]()
	}
	return c.values
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	if c == nil || c.values == nil {
		return nil, false
	}
	return c.values.Get(key)
}

// Value returns the value stored under key, or nil.
func (c *Context) Value(key string) any {
	v, _ := c.Get(key)
	return v
}

// Has reports whether key is present.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// GetString returns the value under key when it is a string.
func (c *Context) GetString(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set writes a single key.
func (c *Context) Set(key string, value any) {
	c.ensure().Set(key, value)
}

// Merge applies a shallow, last-writer-wins update and returns the keys written.
// New keys of a single update are appended in lexical order so runs stay reproducible.
func (c *Context) Merge(u Update) []string {
	if len(u) == 0 {
		return nil
	}
	keys := make([]string, 0, len(u))
	for k := range u {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := c.ensure()
	for _, k := range keys {
		m.Set(k, u[k])
	}
	return keys
}

// Keys returns the keys in insertion order.
func (c *Context) Keys() []string {
	if c == nil || c.values == nil {
		return nil
	}
	keys := make([]string, 0, c.values.Len())
	for pair := c.values.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of keys.
func (c *Context) Len() int {
	if c == nil || c.values == nil {
		return 0
	}
	return c.values.Len()
}

// Clone returns a shallow copy. Values are shared, the key space is not.
func (c *Context) Clone() *Context {
	next := NewContext()
	if c == nil || c.values == nil {
		return next
	}
	for pair := c.values.Oldest(); pair != nil; pair = pair.Next() {
		next.values.Set(pair.Key, pair.Value)
	}
	return next
}

// Map returns a plain map copy of the Context.
func (c *Context) Map() map[string]any {
	out := make(map[string]any, c.Len())
	if c == nil || c.values == nil {
		return out
	}
	for pair := c.values.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// MarshalJSON encodes the Context as a JSON object preserving key order.
func (c *Context) MarshalJSON() ([]byte, error) {
	if c == nil || c.values == nil {
		return []byte("{}"), nil
	}
	return c.values.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping the document's key order.
// Whole numbers decode as int and other numbers as float64, at any depth.
func (c *Context) UnmarshalJSON(data []byte) error {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, raw); err != nil {
		return fmt.Errorf("decode context: %w", err)
	}
	m := orderedmap.New[string, any]()
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		v, err := decodeValue(pair.Value)
		if err != nil {
			return fmt.Errorf("decode context key %q: %w", pair.Key, err)
		}
		m.Set(pair.Key, v)
	}
	c.values = m
	return nil
}

func decodeValue(data json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 0); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, x := range t {
			t[k] = normalizeNumbers(x)
		}
	case []any:
		for i, x := range t {
			t[i] = normalizeNumbers(x)
		}
	}
	return v
}
