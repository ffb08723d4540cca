package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/qidlink/internal/model"
)

// NewReviewer creates a reviewer based on configuration.
// An empty provider returns nil (review hints disabled).
func NewReviewer(config Config) (Reviewer, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		provider, err := NewOpenAIProvider(config)
		if err != nil {
			return nil, err
		}
		return provider, nil

	case "ollama":
		provider, err := NewOllamaProvider(config)
		if err != nil {
			return nil, err
		}
		return provider, nil

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the application config to llm.Config
func ConfigFromModel(cfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxTokens:  cfg.MaxTokens,
		HTTPProxy:  httpCfg.HTTPProxy,
		HTTPSProxy: httpCfg.HTTPSProxy,
		NoProxy:    httpCfg.NoProxy,
	}
}
