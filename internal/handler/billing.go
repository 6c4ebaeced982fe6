// Package handler contains the JSON HTTP handlers.
//
// This file implements subscription status checks and Stripe checkout and
// portal sessions.
//
// Routes handled:
//   - POST /api/subscription/check -> CheckSubscription
//   - POST /api/billing/checkout   -> CreateCheckout
//   - POST /api/billing/portal     -> OpenPortal
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/compliq/internal/auth"
	"github.com/DukeRupert/compliq/internal/billing"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/service"
	"github.com/go-playground/validator/v10"
)

// BillingHandler handles subscription sync and Stripe session requests.
type BillingHandler struct {
	billing  billing.Service
	sync     service.SubscriptionSync
	baseURL  string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, sync service.SubscriptionSync, baseURL string, validate *validator.Validate, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:  billingService,
		sync:     sync,
		baseURL:  baseURL,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes registers billing routes behind requireUser.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/subscription/check", requireUser(http.HandlerFunc(h.CheckSubscription)))
	mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/billing/portal", requireUser(http.HandlerFunc(h.OpenPortal)))
}

// SubscriptionResponse is the body of POST /api/subscription/check.
type SubscriptionResponse struct {
	Subscribed      bool       `json:"subscribed"`
	Tier            string     `json:"tier,omitempty"`
	BillingInterval string     `json:"billing_interval,omitempty"`
	PeriodEnd       *time.Time `json:"period_end,omitempty"`
	UploadLimit     int        `json:"upload_limit"`
	UploadsUsed     int        `json:"uploads_used"`
	UsageReset      bool       `json:"usage_reset"`
}

// CheckSubscription refreshes the caller's subscription from Stripe.
func (h *BillingHandler) CheckSubscription(w http.ResponseWriter, r *http.Request) {
	const op = "handler.check_subscription"

	id := auth.GetIdentity(r.Context())
	if id == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.UpstreamUnavailable(op, "billing is not configured", nil))
		return
	}

	res, err := h.sync.Sync(r.Context(), id.UserID, id.Email, service.TriggerCheck)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, SubscriptionResponse{
		Subscribed:      res.State.Subscribed,
		Tier:            res.State.TierName,
		BillingInterval: string(res.State.BillingInterval),
		PeriodEnd:       res.State.PeriodEnd,
		UploadLimit:     res.Usage.EffectiveUploadLimit,
		UploadsUsed:     res.Usage.UploadsUsed,
		UsageReset:      res.Reconciliation.Reset,
	})
}

// CheckoutRequest is the body of POST /api/billing/checkout.
type CheckoutRequest struct {
	Tier     string `json:"tier" validate:"required,max=50"`
	Interval string `json:"interval" validate:"required,oneof=monthly yearly month year annual"`
}

// CreateCheckout creates a Stripe Checkout session and returns its URL.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "handler.create_checkout"

	id := auth.GetIdentity(r.Context())
	if id == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.UpstreamUnavailable(op, "billing is not configured", nil))
		return
	}

	var req CheckoutRequest
	if err := decodeJSON(w, r, h.validate, defaultMaxBodyBytes, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	interval, err := domain.ParseBillingInterval(req.Interval)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Interval must be monthly or yearly."))
		return
	}

	priceID, err := h.billing.PriceFor(req.Tier, interval)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "That plan is not available."))
		return
	}

	params := billing.CheckoutParams{
		CustomerEmail:     id.Email,
		ClientReferenceID: id.UserID.String(),
		PriceID:           priceID,
		SuccessURL:        h.baseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         h.baseURL + "/billing",
	}
	if state, err := h.sync.State(r.Context(), id.UserID); err == nil && state != nil {
		params.CustomerID = state.StripeCustomerID
	}

	url, err := h.billing.CreateCheckoutSession(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.UpstreamUnavailable(op, "failed to create checkout session", err))
		return
	}

	h.logger.Info("checkout session created", "user_id", id.UserID, "tier", req.Tier, "interval", interval)
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// OpenPortal creates a Stripe Customer Portal session and returns its URL.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	const op = "handler.open_portal"

	id := auth.GetIdentity(r.Context())
	if id == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.UpstreamUnavailable(op, "billing is not configured", nil))
		return
	}

	state, err := h.sync.State(r.Context(), id.UserID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if state == nil || state.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "billing account", id.UserID.String()))
		return
	}

	url, err := h.billing.CreatePortalSession(r.Context(), state.StripeCustomerID, h.baseURL+"/billing")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.UpstreamUnavailable(op, "failed to create portal session", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
