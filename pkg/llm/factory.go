package llm

import (
	"log/slog"

	"github.com/courseforge/courseforge/pkg/config"
)

// BuildProviders constructs adapters for every vendor whose credentials are
// present. The returned map is keyed by provider name as referenced from the
// model catalog.
func BuildProviders(cfg config.ProvidersConfig) map[string]Provider {
	providers := make(map[string]Provider)

	if cfg.GeminiAPIKey != "" {
		providers["gemini"] = NewGeminiProvider(cfg.GeminiAPIKey)
	}
	if cfg.AnthropicAPIKey != "" {
		providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicAPIKey)
	}
	if cfg.OpenAIAPIKey != "" {
		providers["openai"] = NewOpenAIProvider(cfg.OpenAIAPIKey)
	}
	if cfg.DeepSeekAPIKey != "" {
		providers["deepseek"] = NewDeepSeekProvider(cfg.DeepSeekAPIKey)
	}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	slog.Info("LLM providers constructed", "providers", names)

	return providers
}
