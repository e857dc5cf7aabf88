// Package llm generates notification copy with a language model. Every
// provider sits behind Client so the dispatcher can fall back to fixed text
// when generation fails.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/lazypower/keepstreak/internal/config"
)

// Provider names accepted in config.LLMConfig.Provider.
const (
	ProviderNone      = "none"
	ProviderClaudeCLI = "claude-cli"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

const (
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
	defaultOllamaURL      = "http://localhost:11434"
	defaultOllamaModel    = "llama3.2"
)

// Client completes a single prompt.
type Client interface {
	Complete(ctx context.Context, prompt string) (*Response, error)
}

// Response is one completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// Enabled reports whether cfg names a provider. With none configured every
// notification uses the fallback text.
func Enabled(cfg config.LLMConfig) bool {
	return cfg.Provider != "" && cfg.Provider != ProviderNone
}

// NewClient builds the client for cfg.Provider.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case ProviderClaudeCLI:
		return NewClaudeCLI(orDefault(cfg.Model, "haiku")), nil

	case ProviderAnthropic:
		if cfg.AnthropicKey == "" {
			return nil, errors.New("anthropic provider requires ANTHROPIC_API_KEY or llm.anthropic_key")
		}
		model := cfg.Model
		// "haiku" is the CLI alias; the API wants a full model id.
		if model == "" || model == "haiku" {
			model = defaultAnthropicModel
		}
		return NewAnthropic(cfg.AnthropicKey, model), nil

	case ProviderOllama:
		return NewOllama(orDefault(cfg.OllamaURL, defaultOllamaURL), orDefault(cfg.OllamaModel, defaultOllamaModel)), nil
	}
	return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
