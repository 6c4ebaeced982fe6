// Package handler contains the JSON HTTP handlers.
//
// This file implements document processing, the billable action behind the
// quota gate, and report listing.
//
// Routes handled:
//   - POST /api/documents/process -> ProcessDocument
//   - GET  /api/reports           -> ListReports
package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/compliq/internal/auth"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DocumentHandler serves document processing.
type DocumentHandler struct {
	reports      service.ReportService
	validate     *validator.Validate
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewDocumentHandler creates a new DocumentHandler. maxDocumentMB bounds the
// decoded document; the request body limit allows for base64 overhead.
func NewDocumentHandler(reports service.ReportService, validate *validator.Validate, maxDocumentMB float64, logger *slog.Logger) *DocumentHandler {
	if maxDocumentMB <= 0 {
		maxDocumentMB = 10
	}
	return &DocumentHandler{
		reports:      reports,
		validate:     validate,
		maxBodyBytes: int64(maxDocumentMB*domain.BytesPerMB)*4/3 + defaultMaxBodyBytes,
		logger:       logger,
	}
}

// RegisterRoutes registers document routes behind requireUser. limit is
// applied to the processing route only.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux, requireUser, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/documents/process", requireUser(limit(http.HandlerFunc(h.ProcessDocument))))
	mux.Handle("GET /api/reports", requireUser(http.HandlerFunc(h.ListReports)))
}

// ProcessRequest is the body of POST /api/documents/process.
type ProcessRequest struct {
	Document       string                    `json:"document" validate:"required"`
	Filename       string                    `json:"filename" validate:"required,max=255"`
	ReportType     string                    `json:"report_type" validate:"required,oneof=gdpr csrd esg"`
	ComplianceData *domain.ComplianceContext `json:"compliance_data,omitempty"`
}

// ProcessResponse is the body of a successful POST /api/documents/process.
type ProcessResponse struct {
	Report    string    `json:"report"`
	ReportID  uuid.UUID `json:"report_id"`
	Path      string    `json:"path"`
	TrialUsed bool      `json:"trial_used"`
	Remaining int       `json:"remaining"`
}

// ProcessDocument decodes the document and hands it to the report service.
func (h *DocumentHandler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	const op = "handler.process_document"

	id := auth.GetIdentity(r.Context())
	if id == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req ProcessRequest
	if err := decodeJSON(w, r, h.validate, h.maxBodyBytes, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	doc, err := decodeDocument(req.Document)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Document must be base64 encoded."))
		return
	}

	res, err := h.reports.ProcessDocument(r.Context(), service.ProcessDocumentParams{
		UserID:     id.UserID,
		Filename:   strings.TrimSpace(req.Filename),
		Document:   doc,
		ReportType: domain.ReportType(req.ReportType),
		Context:    req.ComplianceData,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{
		Report:    res.Report.Content,
		ReportID:  res.Report.ID,
		Path:      string(res.Path),
		TrialUsed: res.TrialUsed,
		Remaining: res.Remaining,
	})
}

// decodeDocument accepts standard base64, with or without a data URL prefix.
func decodeDocument(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// ReportSummary is one entry of GET /api/reports.
type ReportSummary struct {
	ID          uuid.UUID  `json:"id"`
	Filename    string     `json:"filename"`
	ReportType  string     `json:"report_type"`
	Status      string     `json:"status"`
	Path        string     `json:"path"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListReports returns the caller's recent reports.
func (h *DocumentHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	id := auth.GetIdentity(r.Context())
	if id == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	reports, err := h.reports.ListReports(r.Context(), id.UserID, limit, offset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]ReportSummary, 0, len(reports))
	for _, rep := range reports {
		out = append(out, ReportSummary{
			ID:          rep.ID,
			Filename:    rep.Filename,
			ReportType:  string(rep.ReportType),
			Status:      string(rep.Status),
			Path:        string(rep.AdmissionPath),
			CreatedAt:   rep.CreatedAt,
			CompletedAt: rep.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": out})
}
