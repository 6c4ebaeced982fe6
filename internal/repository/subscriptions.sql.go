package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const subscriptionStateColumns = `user_id, subscribed, tier_name, billing_interval, period_end,
       stripe_customer_id, stripe_subscription_id, synced_at`

func scanSubscriptionState(row interface{ Scan(...interface{}) error }) (SubscriptionState, error) {
	var i SubscriptionState
	err := row.Scan(
		&i.UserID,
		&i.Subscribed,
		&i.TierName,
		&i.BillingInterval,
		&i.PeriodEnd,
		&i.StripeCustomerID,
		&i.StripeSubscriptionID,
		&i.SyncedAt,
	)
	return i, err
}

const getSubscriptionState = `-- name: GetSubscriptionState :one
SELECT ` + subscriptionStateColumns + `
FROM subscription_states
WHERE user_id = $1
`

// GetSubscriptionState returns sql.ErrNoRows when the user has never been synced.
func (q *Queries) GetSubscriptionState(ctx context.Context, userID uuid.UUID) (SubscriptionState, error) {
	return scanSubscriptionState(q.db.QueryRowContext(ctx, getSubscriptionState, userID))
}

const getSubscriptionStateByCustomerID = `-- name: GetSubscriptionStateByCustomerID :one
SELECT ` + subscriptionStateColumns + `
FROM subscription_states
WHERE stripe_customer_id = $1
ORDER BY synced_at DESC
LIMIT 1
`

func (q *Queries) GetSubscriptionStateByCustomerID(ctx context.Context, stripeCustomerID string) (SubscriptionState, error) {
	return scanSubscriptionState(q.db.QueryRowContext(ctx, getSubscriptionStateByCustomerID, stripeCustomerID))
}

const upsertSubscriptionState = `-- name: UpsertSubscriptionState :one
INSERT INTO subscription_states (
    user_id, subscribed, tier_name, billing_interval, period_end,
    stripe_customer_id, stripe_subscription_id, synced_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (user_id) DO UPDATE SET
    subscribed = EXCLUDED.subscribed,
    tier_name = EXCLUDED.tier_name,
    billing_interval = EXCLUDED.billing_interval,
    period_end = EXCLUDED.period_end,
    stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscription_states.stripe_customer_id),
    stripe_subscription_id = EXCLUDED.stripe_subscription_id,
    synced_at = now()
RETURNING ` + subscriptionStateColumns + `
`

type UpsertSubscriptionStateParams struct {
	UserID               uuid.UUID
	Subscribed           bool
	TierName             sql.NullString
	BillingInterval      sql.NullString
	PeriodEnd            sql.NullTime
	StripeCustomerID     sql.NullString
	StripeSubscriptionID sql.NullString
}

func (q *Queries) UpsertSubscriptionState(ctx context.Context, arg UpsertSubscriptionStateParams) (SubscriptionState, error) {
	row := q.db.QueryRowContext(ctx, upsertSubscriptionState,
		arg.UserID,
		arg.Subscribed,
		arg.TierName,
		arg.BillingInterval,
		arg.PeriodEnd,
		arg.StripeCustomerID,
		arg.StripeSubscriptionID,
	)
	return scanSubscriptionState(row)
}

const listSubscriptionStatesDue = `-- name: ListSubscriptionStatesDue :many
SELECT ` + subscriptionStateColumns + `
FROM subscription_states
WHERE subscribed AND period_end IS NOT NULL AND period_end < $1 AND synced_at < period_end
ORDER BY period_end
LIMIT $2
`

type ListSubscriptionStatesDueParams struct {
	Before time.Time
	Limit  int32
}

// ListSubscriptionStatesDue returns subscribed users whose billing period has
// ended and who have not been synced since.
func (q *Queries) ListSubscriptionStatesDue(ctx context.Context, arg ListSubscriptionStatesDueParams) ([]SubscriptionState, error) {
	rows, err := q.db.QueryContext(ctx, listSubscriptionStatesDue, arg.Before, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SubscriptionState
	for rows.Next() {
		i, err := scanSubscriptionState(rows)
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
