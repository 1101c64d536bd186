package adk

import (
	"context"
	"fmt"

	"github.com/user/leadscope/pkg/config"
	"github.com/user/leadscope/pkg/logger"
)

func NewProvider(ctx context.Context, providerName, apiKey, modelName string) (LLMProvider, error) {
	switch providerName {
	case "gemini":
		return NewGeminiProvider(ctx, apiKey, modelName)
	case "openai":
		return NewOpenAIProvider(apiKey, modelName), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}

// ChainFromConfig builds the narrative fallback order: the selected provider and
// model, the selected provider with each fallback model, then every other provider
// that has a key, on its default model. Providers without a key are skipped.
func ChainFromConfig(ctx context.Context, cfg *config.Config) *Chain {
	type candidate struct{ provider, model string }
	var candidates []candidate

	if cfg.SelectedProvider != "" {
		candidates = append(candidates, candidate{cfg.SelectedProvider, cfg.SelectedModel})
		for _, m := range cfg.FallbackModels {
			if m != cfg.SelectedModel {
				candidates = append(candidates, candidate{cfg.SelectedProvider, m})
			}
		}
	}
	for _, name := range cfg.ConfiguredProviders() {
		if name != cfg.SelectedProvider {
			candidates = append(candidates, candidate{name, ""})
		}
	}

	var backends []Backend
	for _, c := range candidates {
		key := cfg.GetAPIKey(c.provider)
		if key == "" {
			logger.Debugf("skipping %s: no API key configured", c.provider)
			continue
		}
		p, err := NewProvider(ctx, c.provider, key, c.model)
		if err != nil {
			logger.Warnf("narrative backend %s unavailable: %v", c.provider, err)
			continue
		}
		name := c.provider
		if c.model != "" {
			name += "/" + c.model
		}
		backends = append(backends, Backend{Name: name, Provider: p})
	}
	return NewChain(backends...)
}
