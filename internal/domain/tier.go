// Package domain contains core business types and interfaces.
//
// This file defines subscription tiers and how a tier plus a billing interval
// turns into an effective upload limit.
package domain

import (
	"fmt"
	"math"
)

// BillingInterval is how often a subscription is billed.
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalYearly  BillingInterval = "yearly"
)

// IsValid returns true if the interval is a recognized value.
func (b BillingInterval) IsValid() bool {
	switch b {
	case BillingIntervalMonthly, BillingIntervalYearly:
		return true
	}
	return false
}

// ParseBillingInterval accepts both our names and the billing provider's
// ("month", "year").
func ParseBillingInterval(s string) (BillingInterval, error) {
	switch s {
	case "monthly", "month":
		return BillingIntervalMonthly, nil
	case "yearly", "year", "annual":
		return BillingIntervalYearly, nil
	}
	return "", fmt.Errorf("unknown billing interval %q", s)
}

// MonthsPerYear is the multiplier applied to yearly subscriptions. Yearly
// subscribers get the whole year's quota up front instead of a monthly reset.
const MonthsPerYear = 12

// TierDefinition is one subscription plan's entitlements.
type TierDefinition struct {
	Name               string
	DisplayName        string
	Rank               int // position in the ordered tier sequence, lowest first
	MonthlyUploadLimit int
	FileSizeLimitMB    float64
	MonthlyPriceCents  int64
	YearlyPriceCents   int64
	Features           []string
}

// EffectiveUploadLimit returns the upload quota for one billing period.
func (t TierDefinition) EffectiveUploadLimit(interval BillingInterval) int {
	if interval == BillingIntervalYearly {
		return t.MonthlyUploadLimit * MonthsPerYear
	}
	return t.MonthlyUploadLimit
}

// PriceCents returns the list price for the interval.
func (t TierDefinition) PriceCents(interval BillingInterval) int64 {
	if interval == BillingIntervalYearly {
		return t.YearlyPriceCents
	}
	return t.MonthlyPriceCents
}

// Validate checks a single definition in isolation. Ordering across tiers is
// checked by the catalog.
func (t TierDefinition) Validate() error {
	switch {
	case t.Name == "":
		return fmt.Errorf("tier name is required")
	case t.MonthlyUploadLimit < 0:
		return fmt.Errorf("tier %q: monthly upload limit must be >= 0, got %d", t.Name, t.MonthlyUploadLimit)
	case t.MonthlyUploadLimit > math.MaxInt32/MonthsPerYear:
		return fmt.Errorf("tier %q: monthly upload limit %d is too large, yearly limit must fit in 32 bits", t.Name, t.MonthlyUploadLimit)
	case t.FileSizeLimitMB <= 0:
		return fmt.Errorf("tier %q: file size limit must be positive, got %g", t.Name, t.FileSizeLimitMB)
	case t.MonthlyPriceCents < 0 || t.YearlyPriceCents < 0:
		return fmt.Errorf("tier %q: prices must be >= 0", t.Name)
	}
	return nil
}
