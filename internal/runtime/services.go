// Package runtime holds the per-process registry of dynamically
// configurable pipeline settings.
package runtime

import (
	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// Services wraps the runtime configuration shared by all pipeline
// components. Model tiers may change at runtime (settings API); the
// config's own locking makes that safe.
type Services struct {
	config *domain.RuntimeConfig
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	if config == nil {
		config = domain.NewRuntimeConfig()
	}
	return &Services{config: config}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// UpdateModels swaps the model tiers at runtime
func (s *Services) UpdateModels(primary, cost, fallback string) {
	s.config.SetModels(primary, cost, fallback)
}
