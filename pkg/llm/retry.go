package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrRetriesExhausted is returned when every retry attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError reports a non-2xx response from a provider API. The status code
// stays inspectable so callers can separate quota pressure from permanent
// failures.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: returned status %d: %s", e.Provider, e.Code, e.Body)
}

// Transient reports whether the status indicates a failure a later attempt
// could clear.
func (e *StatusError) Transient() bool {
	switch e.Code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// RetryConfig defines backoff behavior for transient provider failures.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first (0 = no retries).
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffMultiplier is the factor by which backoff increases.
	BackoffMultiplier float64
	// Jitter adds randomness to backoff to prevent thundering herd.
	Jitter bool
}

// DefaultRetryConfig returns the defaults the CLI uses: three retries
// starting at 500ms, doubling up to an 8s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        8 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// WithRetry wraps provider so transient failures (quota responses, upstream
// 5xx, connection resets) are retried with exponential backoff. Permanent
// failures and context cancellation pass through unchanged.
func WithRetry(provider Provider, cfg RetryConfig, logger zerolog.Logger) Provider {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 8 * time.Second
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2.0
	}
	return &retryProvider{
		inner:  provider,
		cfg:    cfg,
		logger: logger.With().Str("component", "llm").Str("provider", provider.Name()).Logger(),
	}
}

type retryProvider struct {
	inner  Provider
	cfg    RetryConfig
	logger zerolog.Logger
}

func (p *retryProvider) Name() string { return p.inner.Name() }

func (p *retryProvider) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		out, err := p.inner.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || !transient(err) {
			return "", err
		}
		if attempt == p.cfg.MaxRetries {
			break
		}

		backoff := p.backoff(attempt)
		p.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("transient provider failure, retrying")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, p.cfg.MaxRetries+1, lastErr)
}

func (p *retryProvider) backoff(attempt int) time.Duration {
	backoff := time.Duration(float64(p.cfg.InitialBackoff) * math.Pow(p.cfg.BackoffMultiplier, float64(attempt)))
	if backoff > p.cfg.MaxBackoff {
		backoff = p.cfg.MaxBackoff
	}
	if p.cfg.Jitter {
		// Add random jitter of up to 25% of the backoff
		// #nosec G404 - Non-cryptographic random is acceptable for jitter
		if quarter := int64(backoff / 4); quarter > 0 {
			backoff += time.Duration(rand.Int63n(quarter))
		}
	}
	return backoff
}

func transient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"temporary failure",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
