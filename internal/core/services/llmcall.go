package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// llmCaller wraps the LLM client with the shared retry, timeout and
// candidate-cascade policy used by explanation and summary generation.
type llmCaller struct {
	client driven.LLMClient
	cfg    *domain.RuntimeConfig
	logger *slog.Logger
}

func newLLMCaller(client driven.LLMClient, cfg *domain.RuntimeConfig, logger *slog.Logger) *llmCaller {
	if logger == nil {
		logger = slog.Default()
	}
	return &llmCaller{client: client, cfg: cfg, logger: logger}
}

// generateCascade walks the candidate models in order and returns the
// first successful output. Per candidate it makes up to maxRetries
// attempts with exponential backoff; unavailable and quota errors skip
// straight to the next candidate, permanent errors abandon the
// candidate, transient errors retry. The loop returns on the first
// success - a candidate that succeeds on a retry never falls through
// to the next model.
func (c *llmCaller) generateCascade(ctx context.Context, candidates []string, prompt string, timeout time.Duration, maxRetries int) (text, modelUsed string, err error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var lastErr error
	for _, model := range candidates {
	attempts:
		for attempt := 1; attempt <= maxRetries; attempt++ {
			out, genErr := c.generateOnce(ctx, model, prompt, timeout)
			if genErr == nil {
				return out, model, nil
			}
			lastErr = genErr
			kind := domain.ClassifyLLMError(genErr)
			c.logger.Warn("llm attempt failed",
				"component", "llm-retry",
				"model", model,
				"attempt", attempt,
				"kind", kind.String(),
				"error", genErr,
			)
			switch kind {
			case domain.LLMErrorModelUnavailable, domain.LLMErrorQuotaExhausted:
				break attempts
			case domain.LLMErrorTransient:
				if attempt == maxRetries {
					break attempts
				}
				backoff := c.cfg.BackoffBase * time.Duration(1<<(attempt-1))
				select {
				case <-ctx.Done():
					return "", "", ctx.Err()
				case <-time.After(backoff):
				}
			default:
				break attempts
			}
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = domain.ErrLLMExhausted
	}
	return "", "", fmt.Errorf("%w: %v", domain.ErrLLMExhausted, lastErr)
}

// generateOnce bounds a single attempt by the absolute timeout. The
// provider has no abort, so on timeout the in-flight call keeps
// running: its eventual completion is logged for leak observability
// but never consumed.
func (c *llmCaller) generateOnce(ctx context.Context, model, prompt string, timeout time.Duration) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	started := time.Now()
	go func() {
		text, err := c.client.Generate(ctx, model, prompt)
		ch <- result{text: text, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		go func() {
			r := <-ch
			c.logger.Warn("abandoned llm call settled after timeout",
				"component", "llm-retry",
				"model", model,
				"after", time.Since(started).String(),
				"errored", r.err != nil,
			)
		}()
		return "", fmt.Errorf("%w: model %s after %s", domain.ErrLLMTimeout, model, timeout)
	}
}
