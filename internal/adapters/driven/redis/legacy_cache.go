package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.LegacyExplanationCache = (*LegacyCache)(nil)

const (
	legacyPrefix = "shiur:explanation-cache:"

	// legacyTTL keeps forward-deflection entries around long enough to
	// serve repeat traffic without growing unbounded.
	legacyTTL = 30 * 24 * time.Hour
)

// legacyEntry is the wire shape of one legacy cache record. Field
// names follow the old deployment; the structured archive is
// authoritative, this collection is a migration source plus a forward
// write target.
type legacyEntry struct {
	RawText         string `json:"raw_text"`
	ExplanationText string `json:"explanation_text"`
	ContentHash     string `json:"content_hash"`
	PromptVersion   string `json:"prompt_version"`
	ModelName       string `json:"model_name"`
	Validated       bool   `json:"validated"`
	CreatedAt       int64  `json:"created_at"`
}

// LegacyCache implements the flat opaque-key explanation cache on
// Redis.
type LegacyCache struct {
	client *redis.Client
}

// NewLegacyCache creates a new Redis-backed legacy cache.
func NewLegacyCache(client *redis.Client) *LegacyCache {
	return &LegacyCache{client: client}
}

// Get returns the record stored under the opaque key.
func (c *LegacyCache) Get(ctx context.Context, hashKey string) (*domain.ExplanationRecord, error) {
	raw, err := c.client.Get(ctx, legacyPrefix+hashKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("legacy cache get: %w", err)
	}

	var entry legacyEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// A corrupt entry is treated as absent; it will be overwritten
		// by the next forward write.
		return nil, domain.ErrNotFound
	}
	return &domain.ExplanationRecord{
		RawText:         entry.RawText,
		ExplanationText: entry.ExplanationText,
		ContentHash:     entry.ContentHash,
		PromptVersion:   entry.PromptVersion,
		ModelName:       entry.ModelName,
		Validated:       entry.Validated,
		CreatedAt:       time.Unix(entry.CreatedAt, 0),
	}, nil
}

// Put stores the record under the opaque key.
func (c *LegacyCache) Put(ctx context.Context, hashKey string, rec *domain.ExplanationRecord) error {
	entry := legacyEntry{
		RawText:         rec.RawText,
		ExplanationText: rec.ExplanationText,
		ContentHash:     rec.ContentHash,
		PromptVersion:   rec.PromptVersion,
		ModelName:       rec.ModelName,
		Validated:       rec.Validated,
		CreatedAt:       time.Now().Unix(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, legacyPrefix+hashKey, raw, legacyTTL).Err(); err != nil {
		return fmt.Errorf("legacy cache put: %w", err)
	}
	return nil
}
