package billing

import (
	"testing"
	"time"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

var testPrices = PriceConfig{
	StarterMonthlyPriceID:      "price_starter_m",
	StarterYearlyPriceID:       "price_starter_y",
	ProfessionalMonthlyPriceID: "price_pro_m",
	ProfessionalYearlyPriceID:  "price_pro_y",
}

func TestPriceTable_PlanFor(t *testing.T) {
	table := testPrices.Table()

	tests := []struct {
		name  string
		price *stripe.Price
		want  Plan
	}{
		{"configured monthly", &stripe.Price{ID: "price_starter_m"}, Plan{"starter", domain.BillingIntervalMonthly}},
		{"configured yearly", &stripe.Price{ID: "price_pro_y"}, Plan{"professional", domain.BillingIntervalYearly}},
		{
			"metadata fallback",
			&stripe.Price{
				ID:        "price_other",
				Metadata:  map[string]string{"tier": "enterprise"},
				Recurring: &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalYear},
			},
			Plan{"enterprise", domain.BillingIntervalYearly},
		},
		{
			"unknown price has no tier even with a familiar amount",
			&stripe.Price{ID: "price_mystery", UnitAmount: 19900},
			Plan{"", domain.BillingIntervalMonthly},
		},
		{"nil price", nil, Plan{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.PlanFor(tt.price))
		})
	}
}

func TestPriceTable_PriceFor(t *testing.T) {
	table := testPrices.Table()

	id, ok := table.PriceFor("Professional", domain.BillingIntervalYearly)
	require.True(t, ok)
	assert.Equal(t, "price_pro_y", id)

	_, ok = table.PriceFor("enterprise", domain.BillingIntervalMonthly)
	assert.False(t, ok, "enterprise prices are not configured in this table")
}

func TestPriceTable_Snapshot(t *testing.T) {
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	sub := &stripe.Subscription{
		ID:               "sub_123",
		Status:           stripe.SubscriptionStatusActive,
		CurrentPeriodEnd: end.Unix(),
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_starter_y"}}},
		},
	}

	snap := testPrices.Table().Snapshot("cus_1", sub)

	assert.True(t, snap.Subscribed)
	assert.Equal(t, "cus_1", snap.CustomerID)
	assert.Equal(t, "sub_123", snap.SubscriptionID)
	assert.Equal(t, "starter", snap.TierName)
	assert.Equal(t, domain.BillingIntervalYearly, snap.Interval)
	require.NotNil(t, snap.PeriodEnd)
	assert.True(t, end.Equal(*snap.PeriodEnd))
}

func TestIsEntitling(t *testing.T) {
	assert.True(t, isEntitling(stripe.SubscriptionStatusActive))
	assert.True(t, isEntitling(stripe.SubscriptionStatusTrialing))
	assert.False(t, isEntitling(stripe.SubscriptionStatusCanceled))
	assert.False(t, isEntitling(stripe.SubscriptionStatusPastDue))
	assert.False(t, isEntitling(stripe.SubscriptionStatusIncomplete))
}
