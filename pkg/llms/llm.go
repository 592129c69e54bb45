// Package llms defines the LLM adapter contract consumed by the reasoning
// core: a single generate(prompt, temperature, maxTokens) -> text call.
// Providers for Ollama, OpenAI and Anthropic are included, plus a
// deterministic stub for tests.
package llms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/graphmind/pkg/httpclient"
)

// LLM is the generation contract. Implementations must be safe for
// concurrent use. The core never parses responses as strict JSON; see the
// extraction helpers in this package.
type LLM interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
	Available() bool
	Close() error
}

// Error kinds for adapter failures. Transient and rate-limited errors are
// retried up to the configured budget; permanent errors fail the current
// step only.
type ErrorKind int

const (
	ErrKindTransient ErrorKind = iota
	ErrKindRateLimited
	ErrKindPermanent
)

// AdapterError classifies an LLM or embedding failure for retry decisions.
type AdapterError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Classify maps a raw adapter error onto the retry taxonomy.
func Classify(err error) *AdapterError {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae
	}
	if httpclient.IsRateLimited(err) {
		return &AdapterError{Kind: ErrKindRateLimited, Message: "rate limited", Err: err}
	}
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		return &AdapterError{Kind: ErrKindPermanent, Message: "request rejected", Err: err}
	}
	return &AdapterError{Kind: ErrKindTransient, Message: "transient failure", Err: err}
}

// GenerateWithRetry calls Generate, retrying transient and rate-limited
// failures with exponential backoff up to maxRetries attempts.
func GenerateWithRetry(ctx context.Context, llm LLM, prompt string, temperature float64, maxTokens, maxRetries int) (string, error) {
	var lastErr error
	delay := time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying llm call", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			delay *= 2
		}

		text, err := llm.Generate(ctx, prompt, temperature, maxTokens)
		if err == nil {
			return text, nil
		}
		lastErr = err

		classified := Classify(err)
		if classified.Kind == ErrKindPermanent {
			return "", classified
		}
		if classified.Kind == ErrKindRateLimited {
			// Rate limits back off harder than plain transients.
			delay *= 2
		}
	}

	return "", fmt.Errorf("llm call failed after %d retries: %w", maxRetries, lastErr)
}
