package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoop_AlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var store Store = Noop{}

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("delete: %v", err)
	}
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "not-a-url"); err == nil {
		t.Error("expected error for malformed redis URL")
	}
}
