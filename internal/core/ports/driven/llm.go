package driven

import (
	"context"
)

// LLMClient is the opaque text-in / text-out language model provider.
// Model selection, retries and the candidate cascade live in the
// services layer; the client performs exactly one generation call.
type LLMClient interface {
	// Generate produces text for the prompt with the named model. The
	// returned error string is the classification surface for the
	// retry policy (see domain.ClassifyLLMError).
	Generate(ctx context.Context, model, prompt string) (string, error)

	// Ping verifies the provider is reachable.
	Ping(ctx context.Context) error
}
