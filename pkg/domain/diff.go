package domain

import (
	"reflect"
)

// DiffContext returns the keys that were added or changed between two Context snapshots.
// Merge never deletes keys, so deletions are not reported.
// It returns nil when nothing changed.
func DiffContext(old, new *Context) Update {
	if new == nil {
		return nil
	}

	delta := make(Update)
	for _, k := range new.Keys() {
		newVal := new.Value(k)
		oldVal, exists := old.Get(k)
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}
