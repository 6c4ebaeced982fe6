// Package ai wraps the language-model providers that turn an uploaded
// document into a compliance report. The rest of the service only sees
// ReportGenerator.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/google/uuid"
)

// ReportGenerator produces report text for a document. Latency and content
// quality are entirely the provider's concern.
type ReportGenerator interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// GenerateReport returns the report body for one document.
	GenerateReport(ctx context.Context, params ReportParams) (*ReportResult, error)
}

// ReportParams contains the document and how to analyse it.
type ReportParams struct {
	Document   []byte
	Filename   string
	ReportType domain.ReportType
	Context    *domain.ComplianceContext // optional
	ReportID   uuid.UUID                 // for tracing
	UserID     uuid.UUID                 // for tracing
}

// ReportResult is a generated report plus usage accounting.
type ReportResult struct {
	Content string
	Usage   UsageInfo
}

// UsageInfo tracks API usage for billing and monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	CostCents    int           // Estimated cost in cents
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxTokens      int           // Completion token cap
	Temperature    float32       // Sampling temperature
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// WithDefaults fills unset fields.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.MaxTokens == 0 {
		c.MaxTokens = 4000
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 90 * time.Second
	}
	return c
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidDocument indicates the provider rejected the document
	EAIInvalidDocument = errors.New("document rejected by ai provider")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIEmptyResponse indicates the model returned no text
	EAIEmptyResponse = errors.New("ai provider returned an empty report")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// Backoff returns the delay before retry attempt n (1-based).
func Backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}

// Retry runs fn until it succeeds, returns a non-retryable error, or
// maxAttempts is reached. It stops early when ctx is done.
func Retry(ctx context.Context, maxAttempts int, base time.Duration, onRetry func(attempt int, delay time.Duration, err error), fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) || attempt == maxAttempts {
			return lastErr
		}

		delay := Backoff(base, attempt)
		if onRetry != nil {
			onRetry(attempt, delay, lastErr)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
