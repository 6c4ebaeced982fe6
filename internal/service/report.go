// Package service contains the business logic layer.
//
// This file implements the report service: the billable action the quota
// gate protects. A document is admitted by the gate, archived, turned into a
// compliance report by the configured generator and recorded.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/compliq/internal/ai"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/metrics"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/DukeRupert/compliq/internal/storage"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ProcessDocumentParams is one document submitted for analysis.
type ProcessDocumentParams struct {
	UserID     uuid.UUID
	Filename   string
	Document   []byte
	ReportType domain.ReportType
	Context    *domain.ComplianceContext // optional
}

// ProcessDocumentResult is a generated report and the quota left after it.
type ProcessDocumentResult struct {
	Report    *domain.Report
	Path      domain.AdmissionPath
	TrialUsed bool
	Remaining int
}

// ReportService runs documents through the quota gate and the report
// generator.
type ReportService interface {
	// ProcessDocument validates the document, reserves quota and generates
	// the report. On the trial path the trial is confirmed only after the
	// report is generated.
	ProcessDocument(ctx context.Context, params ProcessDocumentParams) (*ProcessDocumentResult, error)

	// ListReports returns the user's reports, newest first.
	ListReports(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Report, error)
}

// =============================================================================
// Implementation
// =============================================================================

type reportService struct {
	queries   repository.Querier
	gate      QuotaGate
	trial     FreeTrialGate
	generator ai.ReportGenerator
	storage   storage.Storage
	logger    *slog.Logger
}

// NewReportService creates a new ReportService. store may be nil, in which
// case documents are not archived.
func NewReportService(
	queries repository.Querier,
	gate QuotaGate,
	trial FreeTrialGate,
	generator ai.ReportGenerator,
	store storage.Storage,
	logger *slog.Logger,
) ReportService {
	return &reportService{
		queries:   queries,
		gate:      gate,
		trial:     trial,
		generator: generator,
		storage:   store,
		logger:    logger,
	}
}

func (s *reportService) ProcessDocument(ctx context.Context, params ProcessDocumentParams) (*ProcessDocumentResult, error) {
	const op = "report.process_document"

	if !params.ReportType.IsValid() {
		return nil, domain.Invalid(op, "Report type must be one of gdpr, csrd or esg.")
	}
	if err := domain.ValidateDocument(op, params.Filename, params.Document); err != nil {
		return nil, err
	}

	reservation, err := s.gate.CheckAndReserve(ctx, params.UserID, domain.SizeMB(len(params.Document)))
	if err != nil {
		return nil, err
	}

	reportID := uuid.New()
	documentKey := s.archive(ctx, storage.DocumentKey(params.UserID, reportID, params.Filename), params.Document)

	row, err := s.queries.CreateReport(ctx, repository.CreateReportParams{
		ID:             reportID,
		UserID:         params.UserID,
		Filename:       params.Filename,
		ReportType:     string(params.ReportType),
		DocumentKey:    documentKey,
		AdmissionPath:  string(reservation.Path),
		ComplianceData: complianceData(params.Context),
	})
	if err != nil {
		s.unrefunded(reservation, params.UserID, reportID, err)
		return nil, domain.UpstreamUnavailable(op, "failed to record report", err)
	}

	start := time.Now()
	result, genErr := s.generator.GenerateReport(ctx, ai.ReportParams{
		Document:   params.Document,
		Filename:   params.Filename,
		ReportType: params.ReportType,
		Context:    params.Context,
		ReportID:   reportID,
		UserID:     params.UserID,
	})
	metrics.ReportFinished(params.ReportType, s.generator.Name(), time.Since(start), genErr)

	if genErr != nil {
		// Use a fresh context so a cancelled request still records the failure.
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.queries.FailReport(failCtx, repository.FailReportParams{
			ID:            reportID,
			FailureReason: nullString(genErr.Error()),
		}); err != nil {
			s.logger.Error("failed to mark report failed", "report_id", reportID, "error", err)
		}
		s.unrefunded(reservation, params.UserID, reportID, genErr)
		return nil, generationError(op, genErr)
	}

	row, err = s.queries.CompleteReport(ctx, repository.CompleteReportParams{
		ID:      reportID,
		Content: result.Content,
	})
	if err != nil {
		s.unrefunded(reservation, params.UserID, reportID, err)
		return nil, domain.UpstreamUnavailable(op, "failed to store report", err)
	}
	s.archive(ctx, storage.ReportKey(params.UserID, reportID), []byte(result.Content))

	out := &ProcessDocumentResult{
		Report:    reportToDomain(row),
		Path:      reservation.Path,
		Remaining: reservation.Remaining,
	}

	if reservation.NeedsTrialConfirmation() {
		out.TrialUsed = true
		out.Remaining = 0
		if err := s.trial.Confirm(ctx, params.UserID); err != nil {
			// The report exists already. A concurrent request that also
			// passed the trial check loses the confirm race here.
			metrics.TrialUnconfirmed(err)
			s.logger.Warn("trial confirmation failed after report generation",
				"user_id", params.UserID,
				"report_id", reportID,
				"code", domain.ErrorCode(err),
				"error", err,
			)
		}
	}

	s.logger.Info("report generated",
		"user_id", params.UserID,
		"report_id", reportID,
		"report_type", params.ReportType,
		"path", reservation.Path,
		"remaining", out.Remaining,
		"provider", s.generator.Name(),
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
	)

	return out, nil
}

// archive stores data and returns its key, or "" when storage is not
// configured or the write failed. Archiving never blocks a report.
func (s *reportService) archive(ctx context.Context, key string, data []byte) string {
	if s.storage == nil {
		return ""
	}
	err := s.storage.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: storage.DetectContentType(key, data),
		Overwrite:   true,
	})
	if err != nil {
		s.logger.Warn("failed to archive object", "key", key, "error", err)
		return ""
	}
	return key
}

// unrefunded records a paid upload consumed by a request that then failed.
func (s *reportService) unrefunded(r *domain.Reservation, userID, reportID uuid.UUID, cause error) {
	if r.Path != domain.AdmissionPaid {
		return
	}
	metrics.UnrefundedFailuresTotal.Inc()
	s.logger.Warn("paid upload consumed by failed report",
		"user_id", userID,
		"report_id", reportID,
		"uploads_used", r.UploadsUsed,
		"limit", r.UploadLimit,
		"error", cause,
	)
}

func generationError(op string, err error) error {
	switch {
	case errors.Is(err, ai.EAIInvalidDocument):
		return domain.Invalid(op, "The document could not be analysed. Please check the file and try again.")
	case errors.Is(err, ai.EAIRateLimit):
		return domain.Wrap(err, domain.ERATELIMIT, op, "The report generator is busy. Please try again in a minute.")
	default:
		return domain.UpstreamUnavailable(op, "report generation failed", err)
	}
}

func complianceData(c *domain.ComplianceContext) pqtype.NullRawMessage {
	if c.IsZero() {
		return pqtype.NullRawMessage{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}

func (s *reportService) ListReports(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Report, error) {
	const op = "report.list"

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.queries.ListReportsByUser(ctx, repository.ListReportsByUserParams{
		UserID: userID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, domain.UpstreamUnavailable(op, "failed to list reports", err)
	}

	reports := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, *reportToDomain(row))
	}
	return reports, nil
}
