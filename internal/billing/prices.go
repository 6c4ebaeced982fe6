package billing

import (
	"strings"
	"time"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/stripe/stripe-go/v79"
)

// TierMetadataKey is the Stripe price metadata key consulted when a price id
// is not in the configured table.
const TierMetadataKey = "tier"

// PriceConfig holds the Stripe price IDs for each plan.
type PriceConfig struct {
	StarterMonthlyPriceID      string
	StarterYearlyPriceID       string
	ProfessionalMonthlyPriceID string
	ProfessionalYearlyPriceID  string
	EnterpriseMonthlyPriceID   string
	EnterpriseYearlyPriceID    string
}

// Plan is a tier and interval pair a price id stands for.
type Plan struct {
	Tier     string
	Interval domain.BillingInterval
}

// PriceTable maps Stripe price ids to plans. Tiers are never inferred from
// price amounts.
type PriceTable map[string]Plan

// Table builds the lookup table, skipping unset ids.
func (c PriceConfig) Table() PriceTable {
	t := make(PriceTable)
	add := func(id, tier string, interval domain.BillingInterval) {
		if id != "" {
			t[id] = Plan{Tier: tier, Interval: interval}
		}
	}
	add(c.StarterMonthlyPriceID, "starter", domain.BillingIntervalMonthly)
	add(c.StarterYearlyPriceID, "starter", domain.BillingIntervalYearly)
	add(c.ProfessionalMonthlyPriceID, "professional", domain.BillingIntervalMonthly)
	add(c.ProfessionalYearlyPriceID, "professional", domain.BillingIntervalYearly)
	add(c.EnterpriseMonthlyPriceID, "enterprise", domain.BillingIntervalMonthly)
	add(c.EnterpriseYearlyPriceID, "enterprise", domain.BillingIntervalYearly)
	return t
}

// PriceFor returns the price id for a plan.
func (t PriceTable) PriceFor(tier string, interval domain.BillingInterval) (string, bool) {
	for id, plan := range t {
		if strings.EqualFold(plan.Tier, tier) && plan.Interval == interval {
			return id, true
		}
	}
	return "", false
}

// PlanFor resolves a Stripe price to a plan. Unknown ids fall back to the
// price's "tier" metadata and its recurring interval. The returned tier is
// empty when neither is available; the entitlement resolver then reports a
// configuration error instead of guessing.
func (t PriceTable) PlanFor(price *stripe.Price) Plan {
	if price == nil {
		return Plan{}
	}
	if plan, ok := t[price.ID]; ok {
		return plan
	}

	plan := Plan{Tier: price.Metadata[TierMetadataKey], Interval: domain.BillingIntervalMonthly}
	if price.Recurring != nil && price.Recurring.Interval == stripe.PriceRecurringIntervalYear {
		plan.Interval = domain.BillingIntervalYearly
	}
	return plan
}

// Snapshot reduces a Stripe subscription to the fields quota enforcement needs.
func (t PriceTable) Snapshot(customerID string, sub *stripe.Subscription) Snapshot {
	snap := Snapshot{
		CustomerID:     customerID,
		SubscriptionID: sub.ID,
		Subscribed:     true,
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		snap.PeriodEnd = &end
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		plan := t.PlanFor(price)
		snap.PriceID = price.ID
		snap.TierName = plan.Tier
		snap.Interval = plan.Interval
	}
	return snap
}
