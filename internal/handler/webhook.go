// Package handler contains the JSON HTTP handlers.
//
// This file implements the Stripe webhook handler. Every subscription event
// funnels into the subscription sync path, which re-reads the customer from
// Stripe rather than trusting the event payload.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/compliq/internal/billing"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/service"
	"github.com/stripe/stripe-go/v79"
)

const maxWebhookBytes = 65536

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing billing.Service
	sync    service.SubscriptionSync
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, sync service.SubscriptionSync, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing: billingService,
		sync:    sync,
		logger:  logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC, no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// Processing failures are logged and still acknowledged with 200 unless the
// billing provider or store was unreachable, in which case 503 asks Stripe to
// retry the delivery.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	// Stripe does not wait on us; finish the sync even if the connection drops.
	ctx := context.WithoutCancel(r.Context())

	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"customer.subscription.paused",
		"customer.subscription.resumed":
		err = h.handleSubscriptionEvent(ctx, event)
	case "invoice.payment_succeeded", "invoice.payment_failed":
		err = h.handleInvoiceEvent(ctx, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	switch {
	case err == nil:
	case domain.ErrorCode(err) == domain.EUNAVAILABLE:
		h.logger.Error("webhook processing failed, requesting retry", "type", event.Type, "id", event.ID, "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	default:
		h.logger.Error("webhook processing failed", "type", event.Type, "id", event.ID, "code", domain.ErrorCode(err), "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return nil
	}

	if session.Customer == nil {
		h.logger.Warn("checkout session missing customer", "session_id", session.ID)
		return nil
	}

	return h.syncCustomer(ctx, event.Type, session.Customer.ID, session.ClientReferenceID)
}

func (h *WebhookHandler) handleSubscriptionEvent(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err, "type", event.Type)
		return nil
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID, "type", event.Type)
		return nil
	}

	return h.syncCustomer(ctx, event.Type, sub.Customer.ID, "")
}

func (h *WebhookHandler) handleInvoiceEvent(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice event", "error", err, "type", event.Type)
		return nil
	}

	if invoice.Customer == nil {
		return nil
	}

	if event.Type == "invoice.payment_failed" {
		h.logger.Warn("payment failed", "customer_id", invoice.Customer.ID, "invoice_id", invoice.ID)
	}

	return h.syncCustomer(ctx, event.Type, invoice.Customer.ID, "")
}

func (h *WebhookHandler) syncCustomer(ctx context.Context, eventType stripe.EventType, customerID, clientReferenceID string) error {
	res, err := h.sync.SyncCustomer(ctx, customerID, clientReferenceID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			h.logger.Info("webhook for unknown customer ignored", "type", eventType, "customer_id", customerID)
			return nil
		}
		return err
	}

	h.logger.Info("subscription event processed",
		"type", eventType,
		"user_id", res.State.UserID,
		"subscribed", res.State.Subscribed,
		"tier", res.State.TierName,
		"usage_reset", res.Reconciliation.Reset,
	)
	return nil
}
