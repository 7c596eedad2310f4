package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/conductor/pkg/adapters/memory"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	if err != nil {
		t.Fatal(err)
	}
	secureStore := mw(underlying)
	ctx := context.Background()

	c := domain.NewContext()
	c.Set("username", "jdoe")
	c.Set("user_password", "secret123")
	c.Set("details", map[string]any{
		"address":    "123 St",
		"ssn_number": "999-99-9999",
	})
	run := domain.NewRun("pii", domain.ModeGraph, c)

	if err := secureStore.Save(ctx, run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if run.Context.Value("user_password") != "secret123" {
		t.Error("Middleware modified the run in memory")
	}
	if run.Context.Value("details").(map[string]any)["ssn_number"] != "999-99-9999" {
		t.Error("Middleware modified a nested map in memory")
	}

	stored, err := secureStore.Load(ctx, "pii")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if stored.Context.Value("username") != "jdoe" {
		t.Error("Username shouldn't be masked")
	}
	if stored.Context.Value("user_password") != middleware.Mask {
		t.Errorf("Password should be masked, got: %v", stored.Context.Value("user_password"))
	}
	details := stored.Context.Value("details").(map[string]any)
	if details["ssn_number"] != middleware.Mask {
		t.Errorf("Nested SSN should be masked, got: %v", details["ssn_number"])
	}
	if details["address"] != "123 St" {
		t.Errorf("Address shouldn't be masked, got: %v", details["address"])
	}
	if got := stored.Context.Keys(); len(got) != 3 || got[0] != "username" {
		t.Errorf("Expected key order to be kept, got %v", got)
	}
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	if _, err := middleware.NewPIIMiddleware([]string{"("}); err == nil {
		t.Error("Expected invalid pattern error")
	}
}

func TestChain(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"token"})
	if err != nil {
		t.Fatal(err)
	}
	enc := secure(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()

	run := domain.NewRun("chained", domain.ModeGraph, domain.ContextFrom(map[string]any{"token": "abc", "n": 1}))
	if err := store.Save(ctx, run); err != nil {
		t.Fatal(err)
	}
	raw, _ := underlying.Load(ctx, "chained")
	if !raw.Context.Has(middleware.EnvelopeKey) {
		t.Fatal("Expected encrypted envelope underneath")
	}
	loaded, err := store.Load(ctx, "chained")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Context.Value("token") != middleware.Mask {
		t.Errorf("Expected masked token, got %v", loaded.Context.Value("token"))
	}
}
