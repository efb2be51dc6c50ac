package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

func testRecord() *domain.ExplanationRecord {
	return &domain.ExplanationRecord{
		RawText:         "המקור",
		ExplanationText: "הביאור המלא",
		ContentHash:     "abc123",
		PromptVersion:   domain.PromptVersion,
		ModelName:       "gemini-2.5-pro",
		Validated:       true,
	}
}

func TestLegacyCache_PutGet(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewLegacyCache(client)
	ctx := context.Background()

	if err := cache.Put(ctx, "hash-key", testRecord()); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := cache.Get(ctx, "hash-key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ExplanationText != "הביאור המלא" {
		t.Errorf("unexpected text %q", got.ExplanationText)
	}
	if got.ContentHash != "abc123" || got.PromptVersion != domain.PromptVersion {
		t.Error("hit fields must round-trip")
	}
	if !got.Validated {
		t.Error("validated flag must round-trip")
	}
}

func TestLegacyCache_Miss(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := NewLegacyCache(client).Get(context.Background(), "absent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLegacyCache_CorruptEntryTreatedAsMiss(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	client.Set(ctx, legacyPrefix+"bad", "{not json", 0)

	_, err := NewLegacyCache(client).Get(ctx, "bad")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("corrupt entries should read as absent, got %v", err)
	}
}
