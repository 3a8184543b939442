package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsentry/chainsentry/api/schemas"
	"github.com/chainsentry/chainsentry/internal/config"
)

// NewClient creates an LLMClient for the configured provider.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}
