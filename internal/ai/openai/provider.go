// Package openai implements ai.ReportGenerator on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/compliq/internal/ai"
	"github.com/DukeRupert/compliq/internal/metrics"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the model used when none is configured.
	DefaultModel = openai.GPT4oMini

	// Pricing in cents per 1M tokens for gpt-4o-mini
	PricingInputCents  = 15
	PricingOutputCents = 60

	providerName = "openai"
)

// Config contains configuration for the OpenAI provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // optional, for proxies and tests
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.ReportGenerator using OpenAI chat completions.
type Provider struct {
	config Config
	client *openai.Client
	logger *slog.Logger
}

// New creates a new OpenAI report generator.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	config.ProviderConfig = config.ProviderConfig.WithDefaults()

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.ProviderConfig.RequestTimeout}

	return &Provider{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// GenerateReport asks the model for a compliance report on one document.
func (p *Provider) GenerateReport(ctx context.Context, params ai.ReportParams) (*ai.ReportResult, error) {
	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       p.config.Model,
		MaxTokens:   p.config.ProviderConfig.MaxTokens,
		Temperature: p.config.ProviderConfig.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: ai.SystemPrompt(params.ReportType)},
			{Role: openai.ChatMessageRoleUser, Content: ai.UserPrompt(params)},
		},
	}

	var resp openai.ChatCompletionResponse
	err := ai.Retry(ctx, p.config.ProviderConfig.MaxRetries, p.config.ProviderConfig.RetryBaseDelay,
		func(attempt int, delay time.Duration, err error) {
			p.logger.Info("Retrying report generation", "provider", providerName, "attempt", attempt, "delay", delay, "error", err)
		},
		func() error {
			var callErr error
			resp, callErr = p.client.CreateChatCompletion(ctx, req)
			if callErr != nil {
				return mapError(callErr)
			}
			return nil
		})
	if err != nil {
		metrics.AIAPICalls.WithLabelValues(providerName, "error").Inc()
		return nil, ai.WrapError("generate report", err)
	}
	metrics.AIAPICalls.WithLabelValues(providerName, "success").Inc()

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ai.WrapError("generate report", ai.EAIEmptyResponse)
	}

	usage := ai.UsageInfo{
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		CostCents:    calculateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		Duration:     time.Since(start),
	}
	metrics.AITokensTotal.WithLabelValues(providerName, "input").Add(float64(usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues(providerName, "output").Add(float64(usage.OutputTokens))
	metrics.AICostCentsTotal.WithLabelValues(providerName).Add(float64(usage.CostCents))

	return &ai.ReportResult{
		Content: resp.Choices[0].Message.Content,
		Usage:   usage,
	}, nil
}

// mapError maps client errors to the ai package's error codes
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ai.EAITimeout
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		// Network errors are typically retryable
		return fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %v", ai.EAIInvalidDocument, err)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return ai.EAIUnavailable
	}
	return fmt.Errorf("openai API error (status %d): %w", status, err)
}

// calculateCost calculates the cost in cents for the given token usage
func calculateCost(inputTokens, outputTokens int) int {
	return (inputTokens*PricingInputCents + outputTokens*PricingOutputCents) / 1_000_000
}
