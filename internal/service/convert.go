// Package service contains the business logic layer.
//
// This file converts repository rows into domain types.
package service

import (
	"encoding/json"
	"fmt"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/sqlc-dev/pqtype"
)

// tierToDomain converts a tier row. Features must decode as a list of
// strings.
func tierToDomain(t repository.SubscriptionTier) (domain.TierDefinition, error) {
	def := domain.TierDefinition{
		Name:               t.TierName,
		DisplayName:        t.DisplayName,
		Rank:               int(t.Rank),
		MonthlyUploadLimit: int(t.MonthlyUploadLimit),
		FileSizeLimitMB:    t.FileSizeLimitMb,
		MonthlyPriceCents:  t.MonthlyPriceCents,
		YearlyPriceCents:   t.YearlyPriceCents,
	}
	if t.Features.Valid {
		if err := json.Unmarshal(t.Features.RawMessage, &def.Features); err != nil {
			return def, fmt.Errorf("tier %q: decode features: %w", t.TierName, err)
		}
	}
	return def, nil
}

func tierToParams(def domain.TierDefinition) (repository.UpsertSubscriptionTierParams, error) {
	params := repository.UpsertSubscriptionTierParams{
		TierName:           def.Name,
		DisplayName:        def.DisplayName,
		Rank:               int32(def.Rank),
		MonthlyUploadLimit: int32(def.MonthlyUploadLimit),
		FileSizeLimitMb:    def.FileSizeLimitMB,
		MonthlyPriceCents:  def.MonthlyPriceCents,
		YearlyPriceCents:   def.YearlyPriceCents,
	}
	if len(def.Features) > 0 {
		raw, err := json.Marshal(def.Features)
		if err != nil {
			return params, err
		}
		params.Features = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}
	return params, nil
}

func subscriptionStateToDomain(s repository.SubscriptionState) *domain.SubscriptionState {
	state := &domain.SubscriptionState{
		UserID:           s.UserID,
		Subscribed:       s.Subscribed,
		TierName:         s.TierName.String,
		BillingInterval:  domain.BillingInterval(s.BillingInterval.String),
		StripeCustomerID: s.StripeCustomerID.String,
		SubscriptionID:   s.StripeSubscriptionID.String,
		SyncedAt:         s.SyncedAt,
	}
	if s.PeriodEnd.Valid {
		end := s.PeriodEnd.Time
		state.PeriodEnd = &end
	}
	return state
}

func usageRecordToDomain(u repository.UsageRecord) *domain.UsageRecord {
	return &domain.UsageRecord{
		UserID:               u.UserID,
		BaselineTier:         u.BaselineTier,
		EffectiveUploadLimit: int(u.EffectiveUploadLimit),
		UploadsUsed:          int(u.UploadsUsed),
		UpdatedAt:            u.UpdatedAt,
	}
}

func reportToDomain(r repository.Report) *domain.Report {
	report := &domain.Report{
		ID:            r.ID,
		UserID:        r.UserID,
		Filename:      r.Filename,
		ReportType:    domain.ReportType(r.ReportType),
		Status:        domain.ReportStatus(r.Status),
		Content:       r.Content,
		DocumentKey:   r.DocumentKey,
		AdmissionPath: domain.AdmissionPath(r.AdmissionPath),
		CreatedAt:     r.CreatedAt,
	}
	if r.ComplianceData.Valid {
		report.ComplianceData = r.ComplianceData.RawMessage
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		report.CompletedAt = &t
	}
	return report
}
