package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const usageRecordColumns = `user_id, baseline_tier, effective_upload_limit, uploads_used, updated_at`

func scanUsageRecord(row interface{ Scan(...interface{}) error }) (UsageRecord, error) {
	var i UsageRecord
	err := row.Scan(
		&i.UserID,
		&i.BaselineTier,
		&i.EffectiveUploadLimit,
		&i.UploadsUsed,
		&i.UpdatedAt,
	)
	return i, err
}

const getUsageRecord = `-- name: GetUsageRecord :one
SELECT ` + usageRecordColumns + `
FROM usage_records
WHERE user_id = $1
`

func (q *Queries) GetUsageRecord(ctx context.Context, userID uuid.UUID) (UsageRecord, error) {
	return scanUsageRecord(q.db.QueryRowContext(ctx, getUsageRecord, userID))
}

const ensureUsageRecord = `-- name: EnsureUsageRecord :one
INSERT INTO usage_records (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = usage_records.user_id
RETURNING ` + usageRecordColumns + `
`

// EnsureUsageRecord returns the user's record, inserting a zeroed one if absent.
func (q *Queries) EnsureUsageRecord(ctx context.Context, userID uuid.UUID) (UsageRecord, error) {
	return scanUsageRecord(q.db.QueryRowContext(ctx, ensureUsageRecord, userID))
}

const reconcileUsageRecord = `-- name: ReconcileUsageRecord :one
WITH previous AS (
    SELECT baseline_tier FROM usage_records WHERE user_id = $1
)
INSERT INTO usage_records (user_id, baseline_tier, effective_upload_limit, uploads_used, updated_at)
VALUES ($1, $2, $3, 0, now())
ON CONFLICT (user_id) DO UPDATE SET
    uploads_used = CASE
        WHEN usage_records.baseline_tier <> EXCLUDED.baseline_tier THEN 0
        ELSE LEAST(usage_records.uploads_used, EXCLUDED.effective_upload_limit)
    END,
    baseline_tier = EXCLUDED.baseline_tier,
    effective_upload_limit = EXCLUDED.effective_upload_limit,
    updated_at = now()
RETURNING ` + usageRecordColumns + `,
    (SELECT baseline_tier FROM previous) AS previous_tier
`

type ReconcileUsageRecordParams struct {
	UserID               uuid.UUID
	BaselineTier         string
	EffectiveUploadLimit int32
}

type ReconcileUsageRecordRow struct {
	UserID               uuid.UUID
	BaselineTier         string
	EffectiveUploadLimit int32
	UploadsUsed          int32
	UpdatedAt            time.Time
	PreviousTier         sql.NullString
}

// ReconcileUsageRecord stores the new limit and resets uploads_used when the
// baseline tier changes. Within the same tier uploads_used is capped at the
// new limit. PreviousTier is NULL when the record was created.
func (q *Queries) ReconcileUsageRecord(ctx context.Context, arg ReconcileUsageRecordParams) (ReconcileUsageRecordRow, error) {
	row := q.db.QueryRowContext(ctx, reconcileUsageRecord, arg.UserID, arg.BaselineTier, arg.EffectiveUploadLimit)
	var i ReconcileUsageRecordRow
	err := row.Scan(
		&i.UserID,
		&i.BaselineTier,
		&i.EffectiveUploadLimit,
		&i.UploadsUsed,
		&i.UpdatedAt,
		&i.PreviousTier,
	)
	return i, err
}

const incrementUploadsUsed = `-- name: IncrementUploadsUsed :one
UPDATE usage_records
SET uploads_used = uploads_used + 1, updated_at = now()
WHERE user_id = $1 AND uploads_used < effective_upload_limit
RETURNING ` + usageRecordColumns + `
`

// IncrementUploadsUsed consumes one quota unit in a single conditional
// update. Concurrent callers serialize on the row lock and re-check the
// predicate, so the counter never passes the limit. Returns sql.ErrNoRows
// when the quota is exhausted or the record does not exist.
func (q *Queries) IncrementUploadsUsed(ctx context.Context, userID uuid.UUID) (UsageRecord, error) {
	return scanUsageRecord(q.db.QueryRowContext(ctx, incrementUploadsUsed, userID))
}
