package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
	"github.com/shiurlab/shiur-core/internal/hebrew"
	"github.com/shiurlab/shiur-core/internal/prompts"
)

// SummaryService combines the per-corpus explanations into one
// consolidated Hebrew summary under validation constraints, with the
// same model cascade and repair policy as explanations.
type SummaryService struct {
	caller *llmCaller
	cfg    *domain.RuntimeConfig
	logger *slog.Logger
}

// SummaryServiceConfig holds dependencies for SummaryService.
type SummaryServiceConfig struct {
	LLM     driven.LLMClient
	Runtime *domain.RuntimeConfig
	Logger  *slog.Logger
}

// NewSummaryService creates a new summary producer.
func NewSummaryService(cfg SummaryServiceConfig) *SummaryService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runtime := cfg.Runtime
	if runtime == nil {
		runtime = domain.NewRuntimeConfig()
	}
	return &SummaryService{
		caller: newLLMCaller(cfg.LLM, runtime, logger),
		cfg:    runtime,
		logger: logger,
	}
}

// SummaryInput is the combined material for one summary call.
type SummaryInput struct {
	// Sections are the per-corpus explanation blocks, labelled.
	Sections []prompts.SummarySection

	// PreferredModel heads the candidate cascade.
	PreferredModel string
}

// SummaryOutput is the producer's result. ValidationErrors is empty
// when Validated is true.
type SummaryOutput struct {
	Summary          string
	ModelUsed        string
	Validated        bool
	ValidationErrors []string
}

// Summarize produces the consolidated summary.
func (s *SummaryService) Summarize(ctx context.Context, in SummaryInput) (*SummaryOutput, error) {
	if len(in.Sections) == 0 {
		return nil, fmt.Errorf("%w: no sections to summarize", domain.ErrNoContent)
	}

	prompt := prompts.Summary(in.Sections)
	candidates := s.cfg.CascadeFor(in.PreferredModel)
	text, modelUsed, err := s.caller.generateCascade(ctx, candidates, prompt, s.cfg.SummaryTimeout, s.cfg.ExplainRetries)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	text = postProcessSummary(text)
	validationErrors := s.validate(text)
	if len(validationErrors) > 0 {
		repairPrompt := prompts.SummaryRepair(text, validationErrors)
		repaired, _, repairErr := s.caller.generateCascade(ctx, []string{modelUsed}, repairPrompt, s.cfg.SummaryRepairTimeout, s.cfg.RepairRetries)
		if repairErr != nil {
			s.logger.Warn("summary repair failed, keeping invalid output",
				"component", "llm-retry", "model", modelUsed, "error", repairErr)
		} else {
			text = postProcessSummary(repaired)
			validationErrors = s.validate(text)
		}
	}

	return &SummaryOutput{
		Summary:          text,
		ModelUsed:        modelUsed,
		Validated:        len(validationErrors) == 0,
		ValidationErrors: validationErrors,
	}, nil
}

// postProcessSummary strips meta-preamble openings and drops forbidden
// phrase lines entirely.
func postProcessSummary(text string) string {
	text = prompts.StripMetaPreamble(text)
	return prompts.StripForbiddenLines(text)
}

// validate checks the summary constraints and names each violation.
func (s *SummaryService) validate(text string) []string {
	var errs []string
	if text == "" {
		errs = append(errs, "empty output")
		return errs
	}
	if hebrew.Ratio(text) < s.cfg.HebrewRatioThreshold {
		errs = append(errs, fmt.Sprintf("hebrew ratio below %.2f", s.cfg.HebrewRatioThreshold))
	}
	if !prompts.HasBulletLine(text) {
		errs = append(errs, "no bullet lines")
	}
	return errs
}
