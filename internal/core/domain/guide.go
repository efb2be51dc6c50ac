package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// GuideSchemaVersion marks the canonical guide record shape.
const GuideSchemaVersion = 1

// GuideRequest is the orchestrator's input: a location plus the set of
// corpora the guide should draw from.
type GuideRequest struct {
	Section   Section    `json:"section"`
	Chapter   int        `json:"chapter"`
	Paragraph int        `json:"paragraph"`
	Corpora   []CorpusID `json:"corpora"`
}

// Validate checks the request shape. Corpora must be non-empty and
// known; section restrictions (CorpusID.AppliesTo) are not checked here.
func (r GuideRequest) Validate() error {
	loc := Location{Section: r.Section, Chapter: r.Chapter, Paragraph: r.Paragraph}
	if err := loc.Validate(); err != nil {
		return err
	}
	if len(r.Corpora) == 0 {
		return fmt.Errorf("%w: no corpora selected", ErrInvalidInput)
	}
	for _, c := range r.Corpora {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown corpus %q", ErrInvalidInput, c)
		}
	}
	return nil
}

// SortedCorpora returns the corpora sorted and deduplicated, the order
// used for fingerprinting.
func (r GuideRequest) SortedCorpora() []CorpusID {
	seen := make(map[CorpusID]struct{}, len(r.Corpora))
	out := make([]CorpusID, 0, len(r.Corpora))
	for _, c := range r.Corpora {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fingerprint computes the canonical request key:
// SHA-256 over "v1|<section>|<chapter>|<paragraph>|<sorted-corpora-csv>".
func (r GuideRequest) Fingerprint() string {
	paragraph := ""
	if r.Paragraph > 0 {
		paragraph = fmt.Sprintf("%d", r.Paragraph)
	}
	corpora := r.SortedCorpora()
	parts := make([]string, len(corpora))
	for i, c := range corpora {
		parts[i] = string(c)
	}
	payload := fmt.Sprintf("v1|%s|%d|%s|%s", r.Section.Slug(), r.Chapter, paragraph, strings.Join(parts, ","))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// GuideStatus is the lifecycle state of a canonical guide record.
type GuideStatus string

const (
	GuideStatusProcessing GuideStatus = "processing"
	GuideStatusReady      GuideStatus = "ready"
	GuideStatusFailed     GuideStatus = "failed"
)

// CanonicalGuideRecord is the request-level artifact, keyed by the
// request fingerprint and shared across processes.
type CanonicalGuideRecord struct {
	Fingerprint string      `json:"fingerprint"`
	Status      GuideStatus `json:"status"`

	Section   Section    `json:"section"`
	Chapter   int        `json:"chapter"`
	Paragraph int        `json:"paragraph,omitempty"`
	Corpora   []CorpusID `json:"corpora"`

	SummaryText  string `json:"summary_text,omitempty"`
	SummaryModel string `json:"summary_model,omitempty"`
	Validated    bool   `json:"validated"`
	Version      int    `json:"version"`
	ChunkCount   int    `json:"chunk_count"`

	// Error is set only when Status is failed.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stale reports whether a processing record has been inactive past the
// staleness threshold and its lock may be stolen.
func (r *CanonicalGuideRecord) Stale(now time.Time, threshold time.Duration) bool {
	return r.Status == GuideStatusProcessing && now.Sub(r.UpdatedAt) > threshold
}

// GuideChunk is one per-fragment output attached to a guide, stored in
// the chunks sub-collection of the canonical record.
type GuideChunk struct {
	Corpus          CorpusID `json:"corpus"`
	Ordinal         int      `json:"ordinal"`
	ChunkID         string   `json:"chunk_id"`
	Ref             string   `json:"ref,omitempty"`
	RawText         string   `json:"raw_text"`
	ExplanationText string   `json:"explanation_text"`
	ModelName       string   `json:"model_name"`
	Validated       bool     `json:"validated"`
	CacheHit        bool     `json:"cache_hit"`
	DurationMs      int64    `json:"duration_ms"`
}

// GuideResult is the orchestrator's discriminated outcome.
type GuideResult struct {
	Success   bool                  `json:"success"`
	Cancelled bool                  `json:"cancelled"`
	Guide     *CanonicalGuideRecord `json:"guide,omitempty"`
	Chunks    []GuideChunk          `json:"chunks,omitempty"`

	// Error is a human-localized Hebrew message for known conditions.
	Error string `json:"error,omitempty"`
}

// Localized Hebrew user-facing messages for the known failure
// conditions. Internal errors are logged with component tags and never
// forwarded raw.
const (
	MsgNoContent          = "לא נמצא תוכן עבור המקורות שנבחרו"
	MsgNoSourcesSelected  = "לא נבחרו מקורות ללימוד"
	MsgMissingIdentifiers = "חסרים מזהים: סימן או סעיף"
	MsgGenerationFailed   = "אירעה שגיאה בהכנת דף הלימוד, נסו שוב"
	MsgCancelled          = "ההכנה בוטלה לבקשתך"
)
