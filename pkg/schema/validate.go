package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
)

// Schema maps Context keys to their expected types.
type Schema map[string]Type

// FieldError is one key that failed validation.
type FieldError struct {
	Key    string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("input '%s': %s", e.Key, e.Reason)
}

// ValidationError collects every failing key, ordered by key.
type ValidationError struct {
	Fields []*FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0].Error()
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d invalid inputs: %s", len(e.Fields), strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == domain.ErrInvalidInput }

// Validate checks c against s. Keys outside the schema are ignored.
func Validate(s Schema, c *domain.Context) error {
	if len(s) == 0 {
		return nil
	}

	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var fields []*FieldError
	for _, key := range keys {
		t := s[key]
		value, ok := c.Get(key)
		if !ok {
			if _, opt := t.(optional); !opt {
				fields = append(fields, &FieldError{Key: key, Reason: "required"})
			}
			continue
		}
		if err := t.Validate(value); err != nil {
			fields = append(fields, &FieldError{Key: key, Reason: err.Error()})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
