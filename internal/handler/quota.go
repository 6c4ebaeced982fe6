// Package handler contains the JSON HTTP handlers.
//
// This file exposes the quota gate and free-trial gate.
//
// Routes handled:
//   - GET  /api/entitlement     -> GetEntitlement
//   - POST /api/uploads/reserve -> ReserveUpload
//   - POST /api/trial/confirm   -> ConfirmTrial
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/compliq/internal/auth"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/service"
	"github.com/go-playground/validator/v10"
)

// QuotaHandler serves entitlement and reservation requests.
type QuotaHandler struct {
	gate     service.QuotaGate
	trial    service.FreeTrialGate
	validate *validator.Validate
	logger   *slog.Logger
}

// NewQuotaHandler creates a new QuotaHandler.
func NewQuotaHandler(gate service.QuotaGate, trial service.FreeTrialGate, validate *validator.Validate, logger *slog.Logger) *QuotaHandler {
	return &QuotaHandler{
		gate:     gate,
		trial:    trial,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes registers quota routes behind requireUser.
func (h *QuotaHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/entitlement", requireUser(http.HandlerFunc(h.GetEntitlement)))
	mux.Handle("POST /api/uploads/reserve", requireUser(http.HandlerFunc(h.ReserveUpload)))
	mux.Handle("POST /api/trial/confirm", requireUser(http.HandlerFunc(h.ConfirmTrial)))
}

// EntitlementResponse is the body of GET /api/entitlement.
type EntitlementResponse struct {
	Subscribed      bool       `json:"subscribed"`
	Tier            string     `json:"tier,omitempty"`
	BillingInterval string     `json:"billing_interval,omitempty"`
	PeriodEnd       *time.Time `json:"period_end,omitempty"`
	FileSizeLimitMB float64    `json:"file_size_limit_mb"`
	UploadLimit     int        `json:"upload_limit"`
	UploadsUsed     int        `json:"uploads_used"`
	Remaining       int        `json:"remaining"`
	TrialUsed       bool       `json:"trial_used"`
	TrialAvailable  bool       `json:"trial_available"`
}

// GetEntitlement returns the caller's entitlement without consuming quota.
func (h *QuotaHandler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	id := auth.GetIdentity(r.Context())
	if id == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	snap, err := h.gate.Snapshot(r.Context(), id.UserID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, EntitlementResponse{
		Subscribed:      snap.Subscribed,
		Tier:            snap.TierName,
		BillingInterval: string(snap.BillingInterval),
		PeriodEnd:       snap.PeriodEnd,
		FileSizeLimitMB: snap.FileSizeLimitMB,
		UploadLimit:     snap.EffectiveUploadLimit,
		UploadsUsed:     snap.UploadsUsed,
		Remaining:       snap.Remaining,
		TrialUsed:       snap.TrialUsed,
		TrialAvailable:  snap.TrialAvailable,
	})
}

// ReserveRequest is the body of POST /api/uploads/reserve.
type ReserveRequest struct {
	FileSizeMB *float64 `json:"file_size_mb" validate:"required,gte=0"`
}

// ReservationResponse describes an admitted reservation.
type ReservationResponse struct {
	Allowed                   bool    `json:"allowed"`
	Path                      string  `json:"path"`
	Tier                      string  `json:"tier,omitempty"`
	UploadsUsed               int     `json:"uploads_used"`
	UploadLimit               int     `json:"upload_limit"`
	Remaining                 int     `json:"remaining"`
	FileSizeLimitMB           float64 `json:"file_size_limit_mb"`
	RequiresTrialConfirmation bool    `json:"requires_trial_confirmation"`
}

// ReserveUpload runs checkAndReserve for a file of the given size. Denials
// are returned as errors carrying a reason.
func (h *QuotaHandler) ReserveUpload(w http.ResponseWriter, r *http.Request) {
	id := auth.GetIdentity(r.Context())
	if id == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req ReserveRequest
	if err := decodeJSON(w, r, h.validate, defaultMaxBodyBytes, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	res, err := h.gate.CheckAndReserve(r.Context(), id.UserID, *req.FileSizeMB)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, reservationResponse(res))
}

func reservationResponse(res *domain.Reservation) ReservationResponse {
	return ReservationResponse{
		Allowed:                   true,
		Path:                      string(res.Path),
		Tier:                      res.TierName,
		UploadsUsed:               res.UploadsUsed,
		UploadLimit:               res.UploadLimit,
		Remaining:                 res.Remaining,
		FileSizeLimitMB:           res.FileSizeLimitMB,
		RequiresTrialConfirmation: res.NeedsTrialConfirmation(),
	}
}

// ConfirmTrial marks the caller's free trial used. A second call returns
// 402 with reason not_subscribed_and_trial_used.
func (h *QuotaHandler) ConfirmTrial(w http.ResponseWriter, r *http.Request) {
	id := auth.GetIdentity(r.Context())
	if id == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if err := h.trial.Confirm(r.Context(), id.UserID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"trial_used": true})
}
