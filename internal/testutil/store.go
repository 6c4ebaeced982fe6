// Package testutil provides in-memory fakes for service and handler tests.
package testutil

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/google/uuid"
)

// Store is an in-memory repository.Querier. Each method holds the store's
// mutex for its whole body, which gives the same per-statement atomicity as
// the Postgres queries (notably IncrementUploadsUsed and MarkTrialUsed).
type Store struct {
	mu            sync.Mutex
	tiers         map[string]repository.SubscriptionTier
	profiles      map[uuid.UUID]repository.Profile
	subscriptions map[uuid.UUID]repository.SubscriptionState
	usage         map[uuid.UUID]repository.UsageRecord
	reports       map[uuid.UUID]repository.Report

	// Err, when set, is returned by every method. Use it to simulate an
	// unreachable database.
	Err error

	now func() time.Time
}

var _ repository.Querier = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tiers:         make(map[string]repository.SubscriptionTier),
		profiles:      make(map[uuid.UUID]repository.Profile),
		subscriptions: make(map[uuid.UUID]repository.SubscriptionState),
		usage:         make(map[uuid.UUID]repository.UsageRecord),
		reports:       make(map[uuid.UUID]repository.Report),
		now:           time.Now,
	}
}

// =============================================================================
// Seeding helpers
// =============================================================================

// SetSubscription stores a subscription state directly, as the sync path would.
func (s *Store) SetSubscription(state repository.SubscriptionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.SyncedAt.IsZero() {
		state.SyncedAt = s.now()
	}
	s.subscriptions[state.UserID] = state
}

// SetUsage stores a usage record directly.
func (s *Store) SetUsage(rec repository.UsageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[rec.UserID] = rec
}

// Usage returns the stored usage record and whether it exists.
func (s *Store) Usage(userID uuid.UUID) (repository.UsageRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.usage[userID]
	return rec, ok
}

// Profile returns the stored profile and whether it exists.
func (s *Store) Profile(userID uuid.UUID) (repository.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	return p, ok
}

// Reports returns all stored reports.
func (s *Store) Reports() []repository.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	return out
}

// =============================================================================
// Tiers
// =============================================================================

func (s *Store) ListSubscriptionTiers(ctx context.Context) ([]repository.SubscriptionTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]repository.SubscriptionTier, 0, len(s.tiers))
	for _, t := range s.tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (s *Store) UpsertSubscriptionTier(ctx context.Context, arg repository.UpsertSubscriptionTierParams) (repository.SubscriptionTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.SubscriptionTier{}, s.Err
	}
	now := s.now()
	t, ok := s.tiers[arg.TierName]
	if !ok {
		t.CreatedAt = now
	}
	t.TierName = arg.TierName
	t.DisplayName = arg.DisplayName
	t.Rank = arg.Rank
	t.MonthlyUploadLimit = arg.MonthlyUploadLimit
	t.FileSizeLimitMb = arg.FileSizeLimitMb
	t.MonthlyPriceCents = arg.MonthlyPriceCents
	t.YearlyPriceCents = arg.YearlyPriceCents
	t.Features = arg.Features
	t.UpdatedAt = now
	s.tiers[arg.TierName] = t
	return t, nil
}

// =============================================================================
// Profiles
// =============================================================================

func (s *Store) EnsureProfile(ctx context.Context, arg repository.EnsureProfileParams) (repository.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.Profile{}, s.Err
	}
	p, ok := s.profiles[arg.UserID]
	if !ok {
		now := s.now()
		p = repository.Profile{
			UserID:             arg.UserID,
			SubscriptionStatus: "free",
			CreatedAt:          now,
			UpdatedAt:          now,
		}
	}
	if arg.Email != "" {
		p.Email = arg.Email
	}
	s.profiles[arg.UserID] = p
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (repository.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.Profile{}, s.Err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return repository.Profile{}, sql.ErrNoRows
	}
	return p, nil
}

func (s *Store) MarkTrialUsed(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	p, ok := s.profiles[userID]
	if !ok || p.TrialUsed {
		return 0, nil
	}
	p.TrialUsed = true
	p.UpdatedAt = s.now()
	s.profiles[userID] = p
	return 1, nil
}

func (s *Store) UpdateProfileSubscriptionStatus(ctx context.Context, arg repository.UpdateProfileSubscriptionStatusParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if p, ok := s.profiles[arg.UserID]; ok {
		p.SubscriptionStatus = arg.SubscriptionStatus
		s.profiles[arg.UserID] = p
	}
	return nil
}

// =============================================================================
// Subscription states
// =============================================================================

func (s *Store) GetSubscriptionState(ctx context.Context, userID uuid.UUID) (repository.SubscriptionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.SubscriptionState{}, s.Err
	}
	st, ok := s.subscriptions[userID]
	if !ok {
		return repository.SubscriptionState{}, sql.ErrNoRows
	}
	return st, nil
}

func (s *Store) GetSubscriptionStateByCustomerID(ctx context.Context, stripeCustomerID string) (repository.SubscriptionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.SubscriptionState{}, s.Err
	}
	for _, st := range s.subscriptions {
		if st.StripeCustomerID.Valid && st.StripeCustomerID.String == stripeCustomerID {
			return st, nil
		}
	}
	return repository.SubscriptionState{}, sql.ErrNoRows
}

func (s *Store) UpsertSubscriptionState(ctx context.Context, arg repository.UpsertSubscriptionStateParams) (repository.SubscriptionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.SubscriptionState{}, s.Err
	}
	prev := s.subscriptions[arg.UserID]
	st := repository.SubscriptionState{
		UserID:               arg.UserID,
		Subscribed:           arg.Subscribed,
		TierName:             arg.TierName,
		BillingInterval:      arg.BillingInterval,
		PeriodEnd:            arg.PeriodEnd,
		StripeCustomerID:     arg.StripeCustomerID,
		StripeSubscriptionID: arg.StripeSubscriptionID,
		SyncedAt:             s.now(),
	}
	if !st.StripeCustomerID.Valid {
		st.StripeCustomerID = prev.StripeCustomerID
	}
	s.subscriptions[arg.UserID] = st
	return st, nil
}

func (s *Store) ListSubscriptionStatesDue(ctx context.Context, arg repository.ListSubscriptionStatesDueParams) ([]repository.SubscriptionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []repository.SubscriptionState
	for _, st := range s.subscriptions {
		if !st.Subscribed || !st.PeriodEnd.Valid {
			continue
		}
		if st.PeriodEnd.Time.Before(arg.Before) && st.SyncedAt.Before(st.PeriodEnd.Time) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodEnd.Time.Before(out[j].PeriodEnd.Time) })
	if arg.Limit > 0 && len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

// =============================================================================
// Usage
// =============================================================================

func (s *Store) GetUsageRecord(ctx context.Context, userID uuid.UUID) (repository.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.UsageRecord{}, s.Err
	}
	rec, ok := s.usage[userID]
	if !ok {
		return repository.UsageRecord{}, sql.ErrNoRows
	}
	return rec, nil
}

func (s *Store) EnsureUsageRecord(ctx context.Context, userID uuid.UUID) (repository.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.UsageRecord{}, s.Err
	}
	rec, ok := s.usage[userID]
	if !ok {
		rec = repository.UsageRecord{UserID: userID, UpdatedAt: s.now()}
		s.usage[userID] = rec
	}
	return rec, nil
}

func (s *Store) ReconcileUsageRecord(ctx context.Context, arg repository.ReconcileUsageRecordParams) (repository.ReconcileUsageRecordRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.ReconcileUsageRecordRow{}, s.Err
	}
	row := repository.ReconcileUsageRecordRow{UserID: arg.UserID}
	rec, ok := s.usage[arg.UserID]
	if ok {
		row.PreviousTier = sql.NullString{String: rec.BaselineTier, Valid: true}
		if rec.BaselineTier != arg.BaselineTier {
			rec.UploadsUsed = 0
		} else if rec.UploadsUsed > arg.EffectiveUploadLimit {
			rec.UploadsUsed = arg.EffectiveUploadLimit
		}
	} else {
		rec = repository.UsageRecord{UserID: arg.UserID}
	}
	rec.BaselineTier = arg.BaselineTier
	rec.EffectiveUploadLimit = arg.EffectiveUploadLimit
	rec.UpdatedAt = s.now()
	s.usage[arg.UserID] = rec

	row.BaselineTier = rec.BaselineTier
	row.EffectiveUploadLimit = rec.EffectiveUploadLimit
	row.UploadsUsed = rec.UploadsUsed
	row.UpdatedAt = rec.UpdatedAt
	return row, nil
}

func (s *Store) IncrementUploadsUsed(ctx context.Context, userID uuid.UUID) (repository.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.UsageRecord{}, s.Err
	}
	rec, ok := s.usage[userID]
	if !ok || rec.UploadsUsed >= rec.EffectiveUploadLimit {
		return repository.UsageRecord{}, sql.ErrNoRows
	}
	rec.UploadsUsed++
	rec.UpdatedAt = s.now()
	s.usage[userID] = rec
	return rec, nil
}

// =============================================================================
// Reports
// =============================================================================

func (s *Store) CreateReport(ctx context.Context, arg repository.CreateReportParams) (repository.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.Report{}, s.Err
	}
	if _, exists := s.reports[arg.ID]; exists {
		return repository.Report{}, errors.New("duplicate report id")
	}
	r := repository.Report{
		ID:             arg.ID,
		UserID:         arg.UserID,
		Filename:       arg.Filename,
		ReportType:     arg.ReportType,
		Status:         "processing",
		DocumentKey:    arg.DocumentKey,
		AdmissionPath:  arg.AdmissionPath,
		ComplianceData: arg.ComplianceData,
		CreatedAt:      s.now(),
	}
	s.reports[arg.ID] = r
	return r, nil
}

func (s *Store) CompleteReport(ctx context.Context, arg repository.CompleteReportParams) (repository.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return repository.Report{}, s.Err
	}
	r, ok := s.reports[arg.ID]
	if !ok {
		return repository.Report{}, sql.ErrNoRows
	}
	r.Status = "completed"
	r.Content = arg.Content
	r.CompletedAt = sql.NullTime{Time: s.now(), Valid: true}
	s.reports[arg.ID] = r
	return r, nil
}

func (s *Store) FailReport(ctx context.Context, arg repository.FailReportParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	r, ok := s.reports[arg.ID]
	if !ok {
		return nil
	}
	r.Status = "failed"
	r.FailureReason = arg.FailureReason
	r.CompletedAt = sql.NullTime{Time: s.now(), Valid: true}
	s.reports[arg.ID] = r
	return nil
}

func (s *Store) ListReportsByUser(ctx context.Context, arg repository.ListReportsByUserParams) ([]repository.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []repository.Report
	for _, r := range s.reports {
		if r.UserID == arg.UserID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(arg.Offset) >= len(out) {
		return nil, nil
	}
	out = out[arg.Offset:]
	if arg.Limit > 0 && len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}
