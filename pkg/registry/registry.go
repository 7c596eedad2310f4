package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
)

// ErrSealed is returned when registering into a registry that a controller already owns.
var ErrSealed = errors.New("registry is sealed")

// Entry binds a worker handle to its descriptor.
type Entry struct {
	domain.WorkerDescriptor
	Worker ports.Worker
}

// Registry manages the available workers.
// It is safe for concurrent lookup; writes stop once it is sealed.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]Entry
	order   []string
	sealed  bool
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		workers: make(map[string]Entry),
	}
}

// Register adds a worker to the registry.
// If a worker with the same name exists, it is overwritten in place.
func (r *Registry) Register(name, summary string, w ports.Worker) error {
	if name == "" {
		return fmt.Errorf("worker name is required")
	}
	if w == nil {
		return fmt.Errorf("worker '%s' has no handle", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("register worker '%s': %w", name, ErrSealed)
	}
	if _, exists := r.workers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.workers[name] = Entry{
		WorkerDescriptor: domain.WorkerDescriptor{Name: name, Summary: summary},
		Worker:           w,
	}
	return nil
}

// RegisterFunc is a convenience wrapper around Register for plain functions.
func (r *Registry) RegisterFunc(name, summary string, fn ports.WorkerFunc) error {
	return r.Register(name, summary, fn)
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry is read-only.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the worker registered under name.
func (r *Registry) Lookup(name string) (ports.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.workers[name]
	return e.Worker, ok
}

// Descriptors lists worker descriptors in registration order.
func (r *Registry) Descriptors() []domain.WorkerDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.WorkerDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.workers[name].WorkerDescriptor)
	}
	return out
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Invoke looks up a worker by name and executes it.
// Returns an *domain.UnknownWorkerError if the worker is not found.
func (r *Registry) Invoke(ctx context.Context, name, task string, c *domain.Context) (any, error) {
	w, ok := r.Lookup(name)
	if !ok {
		return nil, &domain.UnknownWorkerError{Worker: name}
	}
	return w.Invoke(ctx, task, c)
}
