package llm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Ollama shells out to a local ollama binary. No API key is involved, so
// construction cannot fail; a missing binary surfaces on the first Generate.
type Ollama struct {
	model  string
	logger zerolog.Logger
}

func NewOllama(cfg Config) *Ollama {
	model := cfg.Model
	if model == "" {
		model = "llama3"
	}
	return &Ollama{
		model:  model,
		logger: cfg.Logger.With().Str("component", "llm").Str("provider", "ollama").Logger(),
	}
}

func (p *Ollama) Name() string { return "ollama" }

// Generate runs `ollama run <model> <prompt>` and returns stdout.
func (p *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, "ollama", "run", p.model, prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug().Str("model", p.model).Int("prompt_bytes", len(prompt)).Msg("generation request")

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("ollama: %s: %w", msg, err)
		}
		return "", fmt.Errorf("ollama: run failed: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
