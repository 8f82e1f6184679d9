package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skygateai/skygate/pkg/domain"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini calls the Google generative language REST API.
type Gemini struct {
	model       string
	apiKey      string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewGemini reads the API key from GOOGLE_API_KEY.
func NewGemini(cfg Config) (*Gemini, error) {
	apiKey := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: GOOGLE_API_KEY not set: %w", domain.ErrProviderNotConfigured)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	// Model names may arrive with the REST resource prefix already attached.
	model = strings.TrimPrefix(model, "models/")

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}

	return &Gemini{
		model:       model,
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: cfg.Temperature,
		maxTokens:   cfg.maxTokens(),
		httpClient:  cfg.httpClient(),
		logger:      cfg.Logger.With().Str("component", "llm").Str("provider", "gemini").Logger(),
	}, nil
}

func (p *Gemini) Name() string { return "gemini" }

// Generate calls generateContent and concatenates the text parts of the first
// candidate. A safety-blocked response is surfaced as an error rather than an
// empty script.
func (p *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     p.temperature,
			"maxOutputTokens": p.maxTokens,
		},
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	p.logger.Debug().Str("model", p.model).Int("prompt_bytes", len(prompt)).Msg("generation request")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn().Err(closeErr).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Provider: "gemini", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var completion struct {
		Candidates []struct {
			FinishReason string `json:"finishReason"`
			Content      struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(completion.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates returned, possibly safety-blocked")
	}

	candidate := completion.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return "", fmt.Errorf("gemini: output blocked by safety filters")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("gemini: no usable text output")
	}
	return out, nil
}
