package middleware_test

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/aretw0/conductor/pkg/adapters/memory"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func secure(t *testing.T, cfg middleware.EncryptionConfig) middleware.Middleware {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return mw
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secureStore := secure(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	ctx := context.Background()
	run := domain.NewRun("run-1", domain.ModeGraph, domain.ContextFrom(map[string]any{"secret": "my-secret-sauce"}))
	run.Current = "review"
	run.History = []string{"draft"}

	if err := secureStore.Save(ctx, run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stored, err := underlying.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.Context.Has("secret") {
		t.Fatalf("Expected secret to be hidden, found: %v", stored.Context.Value("secret"))
	}
	if !stored.Context.Has(middleware.EnvelopeKey) {
		t.Fatal("Expected envelope key in context")
	}
	if stored.Current != "" || len(stored.History) != 0 {
		t.Errorf("Expected execution details to be hidden, got current=%q history=%v", stored.Current, stored.History)
	}
	if stored.Status != domain.StatusRunning {
		t.Errorf("Expected status to stay visible, got %s", stored.Status)
	}

	loaded, err := secureStore.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if loaded.Context.Value("secret") != "my-secret-sauce" {
		t.Errorf("Expected 'my-secret-sauce', got %v", loaded.Context.Value("secret"))
	}
	if loaded.Current != "review" {
		t.Errorf("Expected current 'review', got %q", loaded.Current)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	oldStore := secure(t, middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	ctx := context.Background()

	run := domain.NewRun("rotation", domain.ModeGraph, domain.ContextFrom(map[string]any{"data": "old"}))
	if err := oldStore.Save(ctx, run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	newStore := secure(t, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})(underlying)
	loaded, err := newStore.Load(ctx, "rotation")
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}
	if loaded.Context.Value("data") != "old" {
		t.Errorf("Decryption with fallback key failed")
	}

	loaded.Context.Set("data", "new")
	if err := newStore.Save(ctx, loaded); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}
	if _, err := oldStore.Load(ctx, "rotation"); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_RejectsPlainRuns(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	if err := underlying.Save(ctx, domain.NewRun("plain", domain.ModeGraph, nil)); err != nil {
		t.Fatal(err)
	}

	secureStore := secure(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	if _, err := secureStore.Load(ctx, "plain"); err == nil {
		t.Error("Expected plain run to be refused")
	}
	if _, err := secureStore.Load(ctx, "ghost"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	if _, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")}); !errors.Is(err, middleware.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	if !errors.Is(err, middleware.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey for fallback, got %v", err)
	}
}
