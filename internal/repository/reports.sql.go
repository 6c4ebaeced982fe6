package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const reportColumns = `id, user_id, filename, report_type, status, content, document_key,
       admission_path, compliance_data, failure_reason, created_at, completed_at`

func scanReport(row interface{ Scan(...interface{}) error }) (Report, error) {
	var i Report
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Filename,
		&i.ReportType,
		&i.Status,
		&i.Content,
		&i.DocumentKey,
		&i.AdmissionPath,
		&i.ComplianceData,
		&i.FailureReason,
		&i.CreatedAt,
		&i.CompletedAt,
	)
	return i, err
}

const createReport = `-- name: CreateReport :one
INSERT INTO reports (id, user_id, filename, report_type, status, document_key, admission_path, compliance_data)
VALUES ($1, $2, $3, $4, 'processing', $5, $6, $7)
RETURNING ` + reportColumns + `
`

type CreateReportParams struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Filename       string
	ReportType     string
	DocumentKey    string
	AdmissionPath  string
	ComplianceData pqtype.NullRawMessage
}

func (q *Queries) CreateReport(ctx context.Context, arg CreateReportParams) (Report, error) {
	row := q.db.QueryRowContext(ctx, createReport,
		arg.ID,
		arg.UserID,
		arg.Filename,
		arg.ReportType,
		arg.DocumentKey,
		arg.AdmissionPath,
		arg.ComplianceData,
	)
	return scanReport(row)
}

const completeReport = `-- name: CompleteReport :one
UPDATE reports
SET status = 'completed', content = $2, completed_at = now()
WHERE id = $1
RETURNING ` + reportColumns + `
`

type CompleteReportParams struct {
	ID      uuid.UUID
	Content string
}

func (q *Queries) CompleteReport(ctx context.Context, arg CompleteReportParams) (Report, error) {
	return scanReport(q.db.QueryRowContext(ctx, completeReport, arg.ID, arg.Content))
}

const failReport = `-- name: FailReport :exec
UPDATE reports
SET status = 'failed', failure_reason = $2, completed_at = now()
WHERE id = $1
`

type FailReportParams struct {
	ID            uuid.UUID
	FailureReason sql.NullString
}

func (q *Queries) FailReport(ctx context.Context, arg FailReportParams) error {
	_, err := q.db.ExecContext(ctx, failReport, arg.ID, arg.FailureReason)
	return err
}

const listReportsByUser = `-- name: ListReportsByUser :many
SELECT ` + reportColumns + `
FROM reports
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListReportsByUserParams struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListReportsByUser(ctx context.Context, arg ListReportsByUserParams) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, listReportsByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Report
	for rows.Next() {
		i, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
