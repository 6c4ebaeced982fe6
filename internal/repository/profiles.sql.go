package repository

import (
	"context"

	"github.com/google/uuid"
)

const ensureProfile = `-- name: EnsureProfile :one
INSERT INTO profiles (user_id, email)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET
    email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE profiles.email END,
    updated_at = CASE WHEN EXCLUDED.email <> '' AND EXCLUDED.email <> profiles.email THEN now() ELSE profiles.updated_at END
RETURNING user_id, email, trial_used, subscription_status, created_at, updated_at
`

type EnsureProfileParams struct {
	UserID uuid.UUID
	Email  string
}

// EnsureProfile returns the profile, creating it with trial_used=false on
// first reference. A non-empty email refreshes the stored one.
func (q *Queries) EnsureProfile(ctx context.Context, arg EnsureProfileParams) (Profile, error) {
	row := q.db.QueryRowContext(ctx, ensureProfile, arg.UserID, arg.Email)
	var i Profile
	err := row.Scan(
		&i.UserID,
		&i.Email,
		&i.TrialUsed,
		&i.SubscriptionStatus,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getProfile = `-- name: GetProfile :one
SELECT user_id, email, trial_used, subscription_status, created_at, updated_at
FROM profiles
WHERE user_id = $1
`

func (q *Queries) GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	row := q.db.QueryRowContext(ctx, getProfile, userID)
	var i Profile
	err := row.Scan(
		&i.UserID,
		&i.Email,
		&i.TrialUsed,
		&i.SubscriptionStatus,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const markTrialUsed = `-- name: MarkTrialUsed :execrows
UPDATE profiles
SET trial_used = true, updated_at = now()
WHERE user_id = $1 AND trial_used = false
`

// MarkTrialUsed flips the trial flag. It affects zero rows when the trial was
// already used, which makes the flip happen exactly once.
func (q *Queries) MarkTrialUsed(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, markTrialUsed, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateProfileSubscriptionStatus = `-- name: UpdateProfileSubscriptionStatus :exec
UPDATE profiles
SET subscription_status = $2, updated_at = now()
WHERE user_id = $1
`

type UpdateProfileSubscriptionStatusParams struct {
	UserID             uuid.UUID
	SubscriptionStatus string
}

func (q *Queries) UpdateProfileSubscriptionStatus(ctx context.Context, arg UpdateProfileSubscriptionStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateProfileSubscriptionStatus, arg.UserID, arg.SubscriptionStatus)
	return err
}
