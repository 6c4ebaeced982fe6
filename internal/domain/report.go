// Package domain contains core business types and interfaces.
//
// This file defines compliance reports and the documents they are generated from.
package domain

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Report Type
// =============================================================================

// ReportType is the regulatory framework a report is written against.
type ReportType string

const (
	ReportTypeGDPR ReportType = "gdpr"
	ReportTypeCSRD ReportType = "csrd"
	ReportTypeESG  ReportType = "esg"
)

// IsValid returns true if the report type is a recognized value.
func (t ReportType) IsValid() bool {
	switch t {
	case ReportTypeGDPR, ReportTypeCSRD, ReportTypeESG:
		return true
	}
	return false
}

// Label returns the human-readable framework name.
func (t ReportType) Label() string {
	switch t {
	case ReportTypeGDPR:
		return "GDPR"
	case ReportTypeCSRD:
		return "CSRD"
	case ReportTypeESG:
		return "ESG"
	}
	return strings.ToUpper(string(t))
}

// =============================================================================
// Report Status
// =============================================================================

// ReportStatus tracks a report through generation.
type ReportStatus string

const (
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

// =============================================================================
// Report Domain Type
// =============================================================================

// Report is one generated compliance report.
type Report struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Filename       string
	ReportType     ReportType
	Status         ReportStatus
	Content        string
	DocumentKey    string
	AdmissionPath  AdmissionPath
	ComplianceData json.RawMessage
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// =============================================================================
// Document Validation
// =============================================================================

// BytesPerMB converts byte counts to the megabytes used by tier limits.
const BytesPerMB = 1024 * 1024

// SizeMB returns n bytes expressed in megabytes.
func SizeMB(n int) float64 {
	return float64(n) / BytesPerMB
}

var allowedDocumentExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
}

var suspiciousContent = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile("\x00"),
}

// ValidateDocument checks the filename extension and scans text documents for
// content that should never reach the report generator.
func ValidateDocument(op, filename string, content []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedDocumentExtensions[ext] {
		return Invalid(op, "Unsupported file type. Upload a PDF, DOC, DOCX or TXT document.")
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\\x00") {
		return Invalid(op, "Invalid file name.")
	}
	if len(content) == 0 {
		return Invalid(op, "The document is empty.")
	}
	// Binary formats legitimately contain NUL bytes and arbitrary sequences.
	if ext != ".txt" {
		return nil
	}
	for _, re := range suspiciousContent {
		if re.Match(content) {
			return Invalid(op, "The document contains content that is not allowed.")
		}
	}
	return nil
}

// ComplianceContext is optional organisation detail passed to the report
// generator to tailor the analysis.
type ComplianceContext struct {
	Country              string   `json:"country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	Industry             string   `json:"industry,omitempty" validate:"omitempty,max=100"`
	CompanySize          string   `json:"company_size,omitempty" validate:"omitempty,oneof=micro small medium large"`
	DataCategories       []string `json:"data_categories,omitempty" validate:"omitempty,max=20,dive,max=100"`
	ProcessingActivities []string `json:"processing_activities,omitempty" validate:"omitempty,max=20,dive,max=200"`
}

// IsZero reports whether no context was supplied.
func (c *ComplianceContext) IsZero() bool {
	return c == nil || (c.Country == "" && c.Industry == "" && c.CompanySize == "" &&
		len(c.DataCategories) == 0 && len(c.ProcessingActivities) == 0)
}
