package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestProgress_InitAndIncrement(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	p := NewProgress(client)
	ctx := context.Background()

	if err := p.Init(ctx, "fp-1", 5); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	done, total, err := p.Get(ctx, "fp-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if done != 0 || total != 5 {
		t.Errorf("expected 0/5, got %d/%d", done, total)
	}

	for i := 0; i < 3; i++ {
		if err := p.Increment(ctx, "fp-1"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}
	done, total, _ = p.Get(ctx, "fp-1")
	if done != 3 || total != 5 {
		t.Errorf("expected 3/5, got %d/%d", done, total)
	}
}

func TestProgress_InitResetsDone(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	p := NewProgress(client)
	ctx := context.Background()

	_ = p.Init(ctx, "fp-1", 2)
	_ = p.Increment(ctx, "fp-1")
	_ = p.Init(ctx, "fp-1", 7)

	done, total, _ := p.Get(ctx, "fp-1")
	if done != 0 || total != 7 {
		t.Errorf("re-init should reset counters, got %d/%d", done, total)
	}
}

func TestProgress_MissingFingerprint(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	done, total, err := NewProgress(client).Get(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("missing fingerprint should not error: %v", err)
	}
	if done != 0 || total != 0 {
		t.Errorf("expected 0/0, got %d/%d", done, total)
	}
}

func TestCancelFlag(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	p := NewProgress(client)
	ctx := context.Background()

	cancelled, err := p.IsCancelled(ctx, "fp-1")
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cancelled {
		t.Error("flag should start unset")
	}

	if err := p.RequestCancel(ctx, "fp-1"); err != nil {
		t.Fatalf("request cancel failed: %v", err)
	}
	cancelled, _ = p.IsCancelled(ctx, "fp-1")
	if !cancelled {
		t.Error("flag should be set after RequestCancel")
	}

	// Other fingerprints are unaffected.
	other, _ := p.IsCancelled(ctx, "fp-2")
	if other {
		t.Error("unrelated fingerprint should not be cancelled")
	}
}
