package domain

import (
	"errors"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstreamNotFound indicates the text or link endpoint returned
	// non-2xx for a given ref
	ErrUpstreamNotFound = errors.New("upstream ref not found")

	// ErrUpstreamSchema indicates the upstream response was missing
	// required fields; treated like ErrUpstreamNotFound by callers
	ErrUpstreamSchema = errors.New("upstream schema drift")

	// ErrLockHeld indicates another process holds the build lock
	ErrLockHeld = errors.New("lock held by another builder")

	// ErrAlignmentTimeout indicates waiting for a concurrent alignment
	// build exceeded the deadline
	ErrAlignmentTimeout = errors.New("timed out waiting for alignment build")

	// ErrGuideTimeout indicates waiting for a concurrent guide build
	// exceeded the polling budget
	ErrGuideTimeout = errors.New("timed out waiting for guide build")

	// ErrCancelled indicates the caller requested cancellation
	ErrCancelled = errors.New("cancelled")

	// ErrNoContent indicates no corpus returned any usable content
	ErrNoContent = errors.New("no corpus returned content")

	// ErrLLMExhausted indicates every candidate model failed
	ErrLLMExhausted = errors.New("all candidate models failed")

	// ErrLLMTimeout indicates a single LLM attempt exceeded its budget
	ErrLLMTimeout = errors.New("llm call timeout")
)

// LLMErrorKind buckets provider errors for the retry/cascade policy.
type LLMErrorKind int

const (
	// LLMErrorNone means no error.
	LLMErrorNone LLMErrorKind = iota

	// LLMErrorModelUnavailable means the model name is unknown to the
	// provider; skip remaining attempts and move to the next candidate.
	LLMErrorModelUnavailable

	// LLMErrorQuotaExhausted means quota is gone for this model; move to
	// the next candidate without retrying.
	LLMErrorQuotaExhausted

	// LLMErrorTransient means a retry with backoff may succeed.
	LLMErrorTransient

	// LLMErrorPermanent means further attempts on this candidate are
	// pointless.
	LLMErrorPermanent
)

func (k LLMErrorKind) String() string {
	switch k {
	case LLMErrorNone:
		return "none"
	case LLMErrorModelUnavailable:
		return "model_unavailable"
	case LLMErrorQuotaExhausted:
		return "quota_exhausted"
	case LLMErrorTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// ClassifyLLMError buckets a provider error by substring on its
// stringified form, per the provider contract.
func ClassifyLLMError(err error) LLMErrorKind {
	if err == nil {
		return LLMErrorNone
	}
	s := strings.ToLower(err.Error())

	if strings.Contains(s, "model") &&
		(strings.Contains(s, "not found") || strings.Contains(s, "not supported") || strings.Contains(s, "404")) {
		return LLMErrorModelUnavailable
	}
	if strings.Contains(s, "429") || strings.Contains(s, "quota") || strings.Contains(s, "resource_exhausted") {
		return LLMErrorQuotaExhausted
	}
	if strings.Contains(s, "503") || strings.Contains(s, "timeout") || strings.Contains(s, "temporar") ||
		strings.Contains(s, "rate limit") {
		return LLMErrorTransient
	}
	return LLMErrorPermanent
}
