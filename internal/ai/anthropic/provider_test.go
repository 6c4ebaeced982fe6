package anthropic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DukeRupert/compliq/internal/ai"
	"github.com/DukeRupert/compliq/internal/domain"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ai.EAIUnauthorized},
		{http.StatusTooManyRequests, ai.EAIRateLimit},
		{http.StatusRequestTimeout, ai.EAITimeout},
		{http.StatusBadRequest, ai.EAIInvalidDocument},
		{http.StatusServiceUnavailable, ai.EAIUnavailable},
		{529, ai.EAIUnavailable},
	}

	for _, tt := range tests {
		err := mapHTTPError(tt.status, []byte(`{"error":{"type":"x","message":"m"}}`))
		if !errors.Is(err, tt.want) {
			t.Errorf("mapHTTPError(%d) = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestCalculateCost(t *testing.T) {
	if got := calculateCost(1_000_000, 1_000_000); got != PricingInputCents+PricingOutputCents {
		t.Errorf("calculateCost = %d, want %d", got, PricingInputCents+PricingOutputCents)
	}
	if got := calculateCost(100, 100); got != 0 {
		t.Errorf("calculateCost for tiny usage = %d, want 0", got)
	}
}

func TestGenerateReport_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Report body"}],"usage":{"input_tokens":10,"output_tokens":20}}`))
	}))
	defer srv.Close()

	p, err := New(Config{
		APIKey:         "k",
		BaseURL:        srv.URL,
		ProviderConfig: ai.ProviderConfig{RetryBaseDelay: time.Millisecond},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := p.GenerateReport(context.Background(), ai.ReportParams{
		Document:   []byte("text"),
		Filename:   "a.txt",
		ReportType: domain.ReportTypeCSRD,
	})
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if res.Content != "Report body" {
		t.Errorf("Content = %q, want %q", res.Content, "Report body")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}
