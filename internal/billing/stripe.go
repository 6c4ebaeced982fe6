// Package billing provides Stripe billing integration: the subscription
// lookups behind the sync path, checkout and portal sessions, and webhook
// verification.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/stripe/stripe-go/v79"
	billingportalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Snapshot is the billing provider's current record for one customer, reduced
// to the fields quota enforcement needs.
type Snapshot struct {
	CustomerID     string
	SubscriptionID string
	Subscribed     bool
	TierName       string
	Interval       domain.BillingInterval
	PeriodEnd      *time.Time
	PriceID        string
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	CustomerID        string // existing customer, optional
	CustomerEmail     string // used when CustomerID is empty
	ClientReferenceID string // our user id, echoed back in the webhook
	PriceID           string
	SuccessURL        string
	CancelURL         string
}

// Service defines the interface for billing operations.
type Service interface {
	// LookupByEmail finds the customer with this email and its current
	// subscription. A missing customer yields an unsubscribed snapshot.
	LookupByEmail(ctx context.Context, email string) (*Snapshot, error)

	// LookupByCustomer returns the current subscription for a known customer.
	LookupByCustomer(ctx context.Context, customerID string) (*Snapshot, error)

	// CreateCheckoutSession creates a Stripe Checkout session for subscribing.
	// Returns the checkout URL to redirect the user to.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	// Returns the portal URL to redirect the user to.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// PriceFor returns the Stripe price id for a tier and interval.
	PriceFor(tier string, interval domain.BillingInterval) (string, error)
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	prices        PriceTable
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
// The prices configure which Stripe price IDs map to which tiers.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey

	return &stripeService{
		webhookSecret: webhookSecret,
		prices:        prices.Table(),
	}
}

func (s *stripeService) LookupByEmail(ctx context.Context, email string) (*Snapshot, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	iter := customer.List(params)
	if !iter.Next() {
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("stripe list customers: %w", err)
		}
		return &Snapshot{}, nil
	}
	return s.LookupByCustomer(ctx, iter.Customer().ID)
}

func (s *stripeService) LookupByCustomer(ctx context.Context, customerID string) (*Snapshot, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Limit = stripe.Int64(10)
	params.Context = ctx

	iter := subscription.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		if isEntitling(sub.Status) {
			snap := s.prices.Snapshot(customerID, sub)
			return &snap, nil
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe list subscriptions: %w", err)
	}
	return &Snapshot{CustomerID: customerID}, nil
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.ClientReferenceID),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	} else if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) PriceFor(tier string, interval domain.BillingInterval) (string, error) {
	id, ok := s.prices.PriceFor(tier, interval)
	if !ok {
		return "", fmt.Errorf("no price configured for %s/%s", tier, interval)
	}
	return id, nil
}

// isEntitling reports whether a subscription in this status grants quota.
func isEntitling(status stripe.SubscriptionStatus) bool {
	return status == stripe.SubscriptionStatusActive || status == stripe.SubscriptionStatusTrialing
}
