// Package llm resolves ambiguous affiliation records with a language model.
// A pluggable Provider turns a deterministic prompt into raw text; the
// runner validates that text against a strict JSON schema before anything
// touches the store.
package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/utb-library/affiliation-cli/internal/config"
)

// Prompt is a provider-independent chat request.
type Prompt struct {
	System string
	User   string
}

// Provider sends a prompt to one model backend and returns the raw response
// text. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// NewProvider constructs the backend selected by configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("llm: anthropic api key not configured")
		}
		return NewAnthropic(cfg.Anthropic.Key, cfg.Anthropic.Model), nil
	case "ollama":
		return NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.Model), nil
	case "openai":
		if cfg.OpenAI.Key == "" {
			return nil, eris.New("llm: openai api key not configured")
		}
		return NewOpenAI(cfg.OpenAI.BaseURL, cfg.OpenAI.Key, cfg.OpenAI.Model), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
