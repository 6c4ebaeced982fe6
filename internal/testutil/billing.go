package testutil

import (
	"context"

	"github.com/DukeRupert/compliq/internal/billing"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v79"
)

// Billing is a testify mock of billing.Service.
type Billing struct {
	mock.Mock
}

var _ billing.Service = (*Billing)(nil)

func (m *Billing) LookupByEmail(ctx context.Context, email string) (*billing.Snapshot, error) {
	args := m.Called(ctx, email)
	snap, _ := args.Get(0).(*billing.Snapshot)
	return snap, args.Error(1)
}

func (m *Billing) LookupByCustomer(ctx context.Context, customerID string) (*billing.Snapshot, error) {
	args := m.Called(ctx, customerID)
	snap, _ := args.Get(0).(*billing.Snapshot)
	return snap, args.Error(1)
}

func (m *Billing) CreateCheckoutSession(ctx context.Context, params billing.CheckoutParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *Billing) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *Billing) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	args := m.Called(payload, signature)
	event, _ := args.Get(0).(stripe.Event)
	return event, args.Error(1)
}

func (m *Billing) PriceFor(tier string, interval domain.BillingInterval) (string, error) {
	args := m.Called(tier, interval)
	return args.String(0), args.Error(1)
}
