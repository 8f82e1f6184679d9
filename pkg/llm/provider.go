// Package llm provides a unified interface for text generation backends.
// Add a backend by implementing Provider and registering it in New.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Provider generates text from a prompt. Implementations are safe for
// concurrent use.
type Provider interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Generate returns the model output for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config tunes provider construction. Zero values select the defaults a
// translation workload wants: deterministic output, bounded length.
type Config struct {
	// Model overrides the backend's default model.
	Model string
	// BaseURL overrides the backend's API endpoint, mainly for tests.
	BaseURL string
	// HTTPClient overrides the default client with its 30s timeout.
	HTTPClient *http.Client
	// Temperature is passed through verbatim; translation wants 0.
	Temperature float64
	// MaxTokens caps the completion length. Zero means 1000.
	MaxTokens int
	Logger    zerolog.Logger
}

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 1000
	}
	return c.MaxTokens
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// New builds a provider by name. Recognised names are openai (alias
// langchain), gemini (alias google), and ollama (alias local).
func New(name string, cfg Config) (Provider, error) {
	switch strings.ToLower(name) {
	case "openai", "langchain":
		return NewOpenAI(cfg)
	case "gemini", "google":
		return NewGemini(cfg)
	case "ollama", "local":
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (supported: openai, gemini, ollama)", name)
	}
}
