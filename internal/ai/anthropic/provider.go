// Package anthropic implements ai.ReportGenerator on the Anthropic
// Messages API using a plain HTTP client.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/compliq/internal/ai"
	"github.com/DukeRupert/compliq/internal/metrics"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-haiku-20241022"

	// Pricing in cents per 1M tokens for claude-3-5-haiku
	PricingInputCents  = 80  // $0.80 per 1M input tokens
	PricingOutputCents = 400 // $4 per 1M output tokens

	providerName = "anthropic"
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // defaults to APIBaseURL
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.ReportGenerator using Anthropic's Messages API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Anthropic report generator
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	config.ProviderConfig = config.ProviderConfig.WithDefaults()

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// GenerateReport asks Claude for a compliance report on one document
func (p *Provider) GenerateReport(ctx context.Context, params ai.ReportParams) (*ai.ReportResult, error) {
	startTime := time.Now()

	body, err := json.Marshal(apiRequest{
		Model:       p.config.Model,
		MaxTokens:   p.config.ProviderConfig.MaxTokens,
		Temperature: p.config.ProviderConfig.Temperature,
		System:      ai.SystemPrompt(params.ReportType),
		Messages: []apiMessage{
			{Role: "user", Content: ai.UserPrompt(params)},
		},
	})
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	var resp *apiResponse
	err = ai.Retry(ctx, p.config.ProviderConfig.MaxRetries, p.config.ProviderConfig.RetryBaseDelay,
		func(attempt int, delay time.Duration, err error) {
			p.logger.Info("Retrying AI request", "provider", providerName, "attempt", attempt, "delay", delay, "error", err)
		},
		func() error {
			var callErr error
			resp, callErr = p.executeRequest(ctx, body)
			return callErr
		})
	if err != nil {
		metrics.AIAPICalls.WithLabelValues(providerName, "error").Inc()
		return nil, ai.WrapError("execute request", err)
	}
	metrics.AIAPICalls.WithLabelValues(providerName, "success").Inc()

	var text strings.Builder
	for _, content := range resp.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, ai.WrapError("parse response", ai.EAIEmptyResponse)
	}

	usage := ai.UsageInfo{
		Model:        p.config.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostCents:    calculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		Duration:     time.Since(startTime),
	}
	metrics.AITokensTotal.WithLabelValues(providerName, "input").Add(float64(usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues(providerName, "output").Add(float64(usage.OutputTokens))
	metrics.AICostCentsTotal.WithLabelValues(providerName).Add(float64(usage.CostCents))

	return &ai.ReportResult{Content: text.String(), Usage: usage}, nil
}

// executeRequest executes a single HTTP request. The body is rebuilt on
// every attempt so retries never send a drained reader.
func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ai.EAITimeout
		}
		// Network errors are typically retryable
		return nil, ai.EAIUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to ai errors
func mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", ai.EAIInvalidDocument, errResp.Error.Message)
	case http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, 529:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// calculateCost calculates the cost in cents for the given token usage
func calculateCost(inputTokens, outputTokens int) int {
	return (inputTokens*PricingInputCents + outputTokens*PricingOutputCents) / 1_000_000
}

// API request/response types

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float32      `json:"temperature"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []apiContentOutput `json:"content"`
	Model   string             `json:"model"`
	Usage   apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
