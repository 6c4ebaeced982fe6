package cli

import (
	"strconv"
	"time"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/spf13/cobra"
)

type usageView struct {
	UserID          string     `json:"user_id" yaml:"user_id"`
	Subscribed      bool       `json:"subscribed" yaml:"subscribed"`
	Tier            string     `json:"tier,omitempty" yaml:"tier,omitempty"`
	BillingInterval string     `json:"billing_interval,omitempty" yaml:"billing_interval,omitempty"`
	PeriodEnd       *time.Time `json:"period_end,omitempty" yaml:"period_end,omitempty"`
	UploadLimit     int        `json:"upload_limit" yaml:"upload_limit"`
	UploadsUsed     int        `json:"uploads_used" yaml:"uploads_used"`
	Remaining       int        `json:"remaining" yaml:"remaining"`
	FileSizeLimitMB float64    `json:"file_size_limit_mb" yaml:"file_size_limit_mb"`
	TrialUsed       bool       `json:"trial_used" yaml:"trial_used"`
	TrialAvailable  bool       `json:"trial_available" yaml:"trial_available"`
}

func newUsageView(userID string, s *domain.EntitlementSnapshot) usageView {
	return usageView{
		UserID:          userID,
		Subscribed:      s.Subscribed,
		Tier:            s.TierName,
		BillingInterval: string(s.BillingInterval),
		PeriodEnd:       s.PeriodEnd,
		UploadLimit:     s.EffectiveUploadLimit,
		UploadsUsed:     s.UploadsUsed,
		Remaining:       s.Remaining,
		FileSizeLimitMB: s.FileSizeLimitMB,
		TrialUsed:       s.TrialUsed,
		TrialAvailable:  s.TrialAvailable,
	}
}

func (v usageView) fields() [][2]string {
	return [][2]string{
		{"user", v.UserID},
		{"subscribed", strconv.FormatBool(v.Subscribed)},
		{"tier", orDash(v.Tier)},
		{"interval", orDash(v.BillingInterval)},
		{"period end", formatTime(v.PeriodEnd)},
		{"uploads", strconv.Itoa(v.UploadsUsed) + " / " + strconv.Itoa(v.UploadLimit)},
		{"remaining", strconv.Itoa(v.Remaining)},
		{"file size limit", formatMB(v.FileSizeLimitMB)},
		{"trial used", strconv.FormatBool(v.TrialUsed)},
		{"trial available", strconv.FormatBool(v.TrialAvailable)},
	}
}

func newUsageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect and repair a user's quota counter",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Show entitlement, usage and trial state as the API reports it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			snap, err := svc.gate.Snapshot(cmd.Context(), userID)
			if err != nil {
				return err
			}

			view := newUsageView(userID.String(), snap)
			if a.outputFormat == "table" {
				return printFields(a.out, view.fields())
			}
			return printOutput(a.out, a.outputFormat, view)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile <user-id>",
		Short: "Align the usage counter with the stored subscription",
		Long: `Reconcile recomputes the upload limit from the stored subscription state.
When the tier differs from the one the counter was last reset for, the
counter is reset to zero. The billing provider is not contacted; use
'subscription sync' to refresh the subscription first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			ent, err := svc.resolver.Resolve(cmd.Context(), userID)
			if err != nil {
				return err
			}
			rec, err := svc.ledger.ReconcileOnEntitlementChange(cmd.Context(), userID, ent.TierName)
			if err != nil {
				return err
			}

			return a.printReconciliation(userID.String(), rec)
		},
	})

	return cmd
}

type reconcileView struct {
	UserID       string `json:"user_id" yaml:"user_id"`
	Tier         string `json:"tier" yaml:"tier"`
	PreviousTier string `json:"previous_tier" yaml:"previous_tier"`
	Reset        bool   `json:"reset" yaml:"reset"`
	UploadLimit  int    `json:"upload_limit" yaml:"upload_limit"`
	UploadsUsed  int    `json:"uploads_used" yaml:"uploads_used"`
}

func (a *app) printReconciliation(userID string, rec *domain.Reconciliation) error {
	view := reconcileView{
		UserID:       userID,
		Tier:         rec.Record.BaselineTier,
		PreviousTier: rec.PreviousTier,
		Reset:        rec.Reset,
		UploadLimit:  rec.Record.EffectiveUploadLimit,
		UploadsUsed:  rec.Record.UploadsUsed,
	}
	if a.outputFormat != "table" {
		return printOutput(a.out, a.outputFormat, view)
	}
	return printFields(a.out, [][2]string{
		{"user", view.UserID},
		{"tier", orDash(view.Tier)},
		{"previous tier", orDash(view.PreviousTier)},
		{"reset", strconv.FormatBool(view.Reset)},
		{"uploads", strconv.Itoa(view.UploadsUsed) + " / " + strconv.Itoa(view.UploadLimit)},
	})
}
