package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/conductor/pkg/domain"
)

// MockStore structure
type MockStore struct{}

func (m *MockStore) Save(ctx context.Context, run *domain.Run) error { return nil }
func (m *MockStore) Load(ctx context.Context, runID string) (*domain.Run, error) {
	return nil, domain.ErrRunNotFound
}
func (m *MockStore) Delete(ctx context.Context, runID string) error { return nil }
func (m *MockStore) List(ctx context.Context) ([]string, error)     { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(&MockStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("run-%d", i)
		_ = mgr.Save(ctx, domain.NewRun(id, domain.ModeGraph, nil))
		_ = mgr.Delete(ctx, id)
	}

	// If cleaned up properly, no lock entries remain.
	lockCount := len(mgr.locks)
	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
