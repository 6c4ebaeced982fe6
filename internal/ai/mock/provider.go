// Package mock provides a canned ai.ReportGenerator for development and tests.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/compliq/internal/ai"
)

// Provider is a mock report generator for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	Response *ai.ReportResult
	Err      error
	Delay    time.Duration

	// Call tracking for testing
	Calls      int
	LastParams ai.ReportParams
}

// New creates a new mock report generator
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// GenerateReport returns the configured response, or a short canned report.
func (p *Provider) GenerateReport(ctx context.Context, params ai.ReportParams) (*ai.ReportResult, error) {
	p.mu.Lock()
	p.Calls++
	p.LastParams = params
	resp, err, delay := p.Response, p.Err, p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ai.WrapError("generate report", ai.EAITimeout)
		}
	}

	if err != nil {
		return nil, err
	}
	if resp != nil {
		return resp, nil
	}

	if p.logger != nil {
		p.logger.Debug("mock report generated", "filename", params.Filename, "report_type", params.ReportType)
	}

	return &ai.ReportResult{
		Content: fmt.Sprintf("# %s Compliance Report\n\n## Document\n%s\n\n## Summary\nNo material gaps identified in the mock analysis.\n",
			params.ReportType.Label(), params.Filename),
		Usage: ai.UsageInfo{Model: "mock", InputTokens: len(params.Document) / 4, OutputTokens: 50},
	}, nil
}

// CallCount returns the number of GenerateReport calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}

// Reset clears all configured responses and call counts
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Response = nil
	p.Err = nil
	p.Delay = 0
	p.Calls = 0
	p.LastParams = ai.ReportParams{}
}
