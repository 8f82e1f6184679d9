// Package translate turns natural language requests into mission scripts and
// back again, through a pluggable llm.Provider.
package translate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skygateai/skygate/pkg/llm"
)

var (
	// fencePattern extracts the body of a markdown code fence; models often
	// wrap output in one despite instructions.
	fencePattern = regexp.MustCompile("(?s)```(?:\\w+)?\\n(.*?)```")
	// instructionPattern collects semicolon-terminated chunks and discards
	// surrounding prose.
	instructionPattern = regexp.MustCompile(`(?s).+?;`)
)

// CleanScript strips model chatter from a generated script: code fences are
// unwrapped and only semicolon-terminated instructions survive.
func CleanScript(raw string) string {
	if match := fencePattern.FindStringSubmatch(raw); match != nil {
		raw = match[1]
	}
	chunks := instructionPattern.FindAllString(raw, -1)
	lines := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		lines = append(lines, strings.TrimSpace(chunk))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Translator generates, explains, repairs, and refines mission scripts.
type Translator struct {
	provider llm.Provider
	logger   zerolog.Logger
}

func NewTranslator(provider llm.Provider, logger zerolog.Logger) *Translator {
	return &Translator{
		provider: provider,
		logger:   logger.With().Str("component", "translate").Logger(),
	}
}

// Provider exposes the backend, mainly for logging and metrics labels.
func (t *Translator) Provider() llm.Provider { return t.provider }

// Translate converts a natural language request into a cleaned script.
func (t *Translator) Translate(ctx context.Context, request string) (string, error) {
	raw, err := t.provider.Generate(ctx, translatePrompt(request))
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	script := CleanScript(raw)
	t.logger.Debug().Int("request_bytes", len(request)).Int("script_lines", strings.Count(script, "\n")+1).
		Msg("translated request")
	return script, nil
}

// Explain renders a script as a plain-language summary for pilot review.
// Output is prose, so no script cleaning is applied.
func (t *Translator) Explain(ctx context.Context, script string) (string, error) {
	raw, err := t.provider.Generate(ctx, explainPrompt(script))
	if err != nil {
		return "", fmt.Errorf("explain script: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

// Repair feeds a failure back to the model and returns the fixed script.
func (t *Translator) Repair(ctx context.Context, badScript, failure string) (string, error) {
	raw, err := t.provider.Generate(ctx, repairPrompt(badScript, failure))
	if err != nil {
		return "", fmt.Errorf("repair script: %w", err)
	}
	return CleanScript(raw), nil
}

// Refine updates the current script per user feedback, keeping correct parts.
func (t *Translator) Refine(ctx context.Context, currentScript, feedback string) (string, error) {
	raw, err := t.provider.Generate(ctx, refinePrompt(currentScript, feedback))
	if err != nil {
		return "", fmt.Errorf("refine script: %w", err)
	}
	return CleanScript(raw), nil
}
