package repository

import (
	"context"

	"github.com/sqlc-dev/pqtype"
)

const listSubscriptionTiers = `-- name: ListSubscriptionTiers :many
SELECT tier_name, display_name, rank, monthly_upload_limit, file_size_limit_mb,
       monthly_price_cents, yearly_price_cents, features, created_at, updated_at
FROM subscription_tiers
ORDER BY rank
`

func (q *Queries) ListSubscriptionTiers(ctx context.Context) ([]SubscriptionTier, error) {
	rows, err := q.db.QueryContext(ctx, listSubscriptionTiers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SubscriptionTier
	for rows.Next() {
		var i SubscriptionTier
		if err := rows.Scan(
			&i.TierName,
			&i.DisplayName,
			&i.Rank,
			&i.MonthlyUploadLimit,
			&i.FileSizeLimitMb,
			&i.MonthlyPriceCents,
			&i.YearlyPriceCents,
			&i.Features,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
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

const upsertSubscriptionTier = `-- name: UpsertSubscriptionTier :one
INSERT INTO subscription_tiers (
    tier_name, display_name, rank, monthly_upload_limit, file_size_limit_mb,
    monthly_price_cents, yearly_price_cents, features
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (tier_name) DO UPDATE SET
    display_name = EXCLUDED.display_name,
    rank = EXCLUDED.rank,
    monthly_upload_limit = EXCLUDED.monthly_upload_limit,
    file_size_limit_mb = EXCLUDED.file_size_limit_mb,
    monthly_price_cents = EXCLUDED.monthly_price_cents,
    yearly_price_cents = EXCLUDED.yearly_price_cents,
    features = EXCLUDED.features,
    updated_at = now()
RETURNING tier_name, display_name, rank, monthly_upload_limit, file_size_limit_mb,
          monthly_price_cents, yearly_price_cents, features, created_at, updated_at
`

type UpsertSubscriptionTierParams struct {
	TierName           string
	DisplayName        string
	Rank               int32
	MonthlyUploadLimit int32
	FileSizeLimitMb    float64
	MonthlyPriceCents  int64
	YearlyPriceCents   int64
	Features           pqtype.NullRawMessage
}

func (q *Queries) UpsertSubscriptionTier(ctx context.Context, arg UpsertSubscriptionTierParams) (SubscriptionTier, error) {
	row := q.db.QueryRowContext(ctx, upsertSubscriptionTier,
		arg.TierName,
		arg.DisplayName,
		arg.Rank,
		arg.MonthlyUploadLimit,
		arg.FileSizeLimitMb,
		arg.MonthlyPriceCents,
		arg.YearlyPriceCents,
		arg.Features,
	)
	var i SubscriptionTier
	err := row.Scan(
		&i.TierName,
		&i.DisplayName,
		&i.Rank,
		&i.MonthlyUploadLimit,
		&i.FileSizeLimitMb,
		&i.MonthlyPriceCents,
		&i.YearlyPriceCents,
		&i.Features,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
