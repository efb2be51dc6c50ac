package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
	"github.com/shiurlab/shiur-core/internal/hebrew"
	"github.com/shiurlab/shiur-core/internal/prompts"
)

// ExplanationService memoizes per-chunk explanations: cache-first
// against the structured archive, read-migration from the legacy
// opaque cache, and on a full miss a model-cascade generation with
// validation and one repair round.
type ExplanationService struct {
	store  driven.ExplanationStore
	legacy driven.LegacyExplanationCache
	caller *llmCaller
	cfg    *domain.RuntimeConfig
	logger *slog.Logger
}

// ExplanationServiceConfig holds dependencies for ExplanationService.
type ExplanationServiceConfig struct {
	Store driven.ExplanationStore

	// Legacy is optional; nil disables legacy-cache migration.
	Legacy driven.LegacyExplanationCache

	LLM     driven.LLMClient
	Runtime *domain.RuntimeConfig
	Logger  *slog.Logger
}

// NewExplanationService creates a new explanation memoizer.
func NewExplanationService(cfg ExplanationServiceConfig) *ExplanationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runtime := cfg.Runtime
	if runtime == nil {
		runtime = domain.NewRuntimeConfig()
	}
	return &ExplanationService{
		store:  cfg.Store,
		legacy: cfg.Legacy,
		caller: newLLMCaller(cfg.LLM, runtime, logger),
		cfg:    runtime,
		logger: logger,
	}
}

// ExplainInput is one explanation request.
type ExplainInput struct {
	Key domain.ExplanationKey

	// RefCanonical is the canonical provider ref of the fragment the
	// chunk came from; part of the legacy cache key.
	RefCanonical string

	// CurrentText is the chunk to explain; ContentHash its hash.
	CurrentText string
	ContentHash string

	// PrevText and PrevExplanation carry the N-1 context when present.
	PrevText        string
	PrevExplanation string

	// CorpusLabel is the Hebrew label used in the prompt header.
	CorpusLabel string

	// CompanionText is the later commentary on the same paragraph;
	// only supplied when the corpus is the primary.
	CompanionText string

	// PreferredModel heads the candidate cascade.
	PreferredModel string
}

// ExplainOutput is the memoizer's result.
type ExplainOutput struct {
	Explanation   string
	ModelUsed     string
	CacheHit      bool
	PromptVersion string
	Validated     bool
	DurationMs    int64
}

// Explain returns the explanation for one chunk, serving from the
// archive when content hash and prompt version match, otherwise
// generating, validating and persisting.
func (s *ExplanationService) Explain(ctx context.Context, in ExplainInput) (*ExplainOutput, error) {
	started := time.Now()

	// 1. Structured archive.
	rec, err := s.store.Get(ctx, in.Key)
	if err == nil && rec.Hit(in.ContentHash, domain.PromptVersion) {
		return &ExplainOutput{
			Explanation:   rec.ExplanationText,
			ModelUsed:     rec.ModelName,
			CacheHit:      true,
			PromptVersion: rec.PromptVersion,
			Validated:     rec.Validated,
			DurationMs:    time.Since(started).Milliseconds(),
		}, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("structured cache read failed",
			"component", "cache", "key", in.Key.String(), "error", err)
	}

	// 2. Legacy opaque cache, iterated over the candidate models; a
	// hit is migrated into the structured key.
	candidates := s.cfg.CascadeFor(in.PreferredModel)
	if s.legacy != nil {
		if out := s.fromLegacy(ctx, in, candidates, started); out != nil {
			return out, nil
		}
	}

	// 3. Full miss: generate through the cascade.
	prompt := prompts.Explanation(prompts.ExplanationInput{
		CorpusLabel:     in.CorpusLabel,
		CurrentText:     in.CurrentText,
		PrevText:        in.PrevText,
		PrevExplanation: in.PrevExplanation,
		CompanionText:   in.CompanionText,
	})
	text, modelUsed, err := s.caller.generateCascade(ctx, candidates, prompt, s.cfg.ExplainTimeout, s.cfg.ExplainRetries)
	if err != nil {
		return nil, fmt.Errorf("explain %s: %w", in.Key.String(), err)
	}

	validated := s.validate(text)
	if !validated {
		text, validated = s.repair(ctx, in.CurrentText, text, modelUsed)
	}

	record := &domain.ExplanationRecord{
		Key:             in.Key,
		RawText:         in.CurrentText,
		ExplanationText: text,
		ContentHash:     in.ContentHash,
		PromptVersion:   domain.PromptVersion,
		ModelName:       modelUsed,
		Validated:       validated,
	}
	s.writeBack(ctx, in, record, modelUsed)

	return &ExplainOutput{
		Explanation:   text,
		ModelUsed:     modelUsed,
		CacheHit:      false,
		PromptVersion: domain.PromptVersion,
		Validated:     validated,
		DurationMs:    time.Since(started).Milliseconds(),
	}, nil
}

// fromLegacy scans the legacy cache under each candidate model's
// opaque key and migrates the first hit into the structured archive.
func (s *ExplanationService) fromLegacy(ctx context.Context, in ExplainInput, candidates []string, started time.Time) *ExplainOutput {
	for _, model := range candidates {
		hashKey := domain.LegacyExplanationKey(in.Key.Corpus, in.RefCanonical, in.Key.Ordinal, in.ContentHash, domain.PromptVersion, model)
		rec, err := s.legacy.Get(ctx, hashKey)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("legacy cache read failed",
					"component", "cache", "key", hashKey, "error", err)
			}
			continue
		}
		if !rec.Hit(in.ContentHash, domain.PromptVersion) {
			continue
		}
		migrated := *rec
		migrated.Key = in.Key
		if err := s.store.Put(ctx, &migrated); err != nil {
			s.logger.Warn("legacy migration write failed",
				"component", "cache", "key", in.Key.String(), "error", err)
		}
		return &ExplainOutput{
			Explanation:   rec.ExplanationText,
			ModelUsed:     rec.ModelName,
			CacheHit:      true,
			PromptVersion: rec.PromptVersion,
			Validated:     rec.Validated,
			DurationMs:    time.Since(started).Milliseconds(),
		}
	}
	return nil
}

// validate applies the Hebrew-ratio requirement.
func (s *ExplanationService) validate(text string) bool {
	return text != "" && hebrew.Ratio(text) >= s.cfg.HebrewRatioThreshold
}

// repair runs the single repair round against the model that produced
// the invalid output. Whichever output last ran is kept, with its
// validation flag.
func (s *ExplanationService) repair(ctx context.Context, source, badOutput, model string) (string, bool) {
	repairPrompt := prompts.ExplanationRepair(source, badOutput)
	repaired, _, err := s.caller.generateCascade(ctx, []string{model}, repairPrompt, s.cfg.RepairTimeout, s.cfg.RepairRetries)
	if err != nil {
		s.logger.Warn("explanation repair failed, keeping invalid output",
			"component", "llm-retry", "model", model, "error", err)
		return badOutput, false
	}
	return repaired, s.validate(repaired)
}

// writeBack persists the structured record and the legacy keys: the
// model actually used, and the originally preferred model when it
// differs, so future legacy-style lookups by preferred model hit.
func (s *ExplanationService) writeBack(ctx context.Context, in ExplainInput, rec *domain.ExplanationRecord, modelUsed string) {
	if err := s.store.Put(ctx, rec); err != nil {
		s.logger.Error("explanation write failed",
			"component", "cache", "key", in.Key.String(), "error", err)
	}
	if s.legacy == nil {
		return
	}
	models := []string{modelUsed}
	if in.PreferredModel != "" && in.PreferredModel != modelUsed {
		models = append(models, in.PreferredModel)
	}
	for _, model := range models {
		hashKey := domain.LegacyExplanationKey(in.Key.Corpus, in.RefCanonical, in.Key.Ordinal, in.ContentHash, domain.PromptVersion, model)
		if err := s.legacy.Put(ctx, hashKey, rec); err != nil {
			s.logger.Warn("legacy forward write failed",
				"component", "cache", "key", hashKey, "error", err)
		}
	}
}
