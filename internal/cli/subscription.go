package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/service"
	"github.com/spf13/cobra"
)

var errBillingDisabled = errors.New("billing is not configured (STRIPE_SECRET_KEY is empty)")

type subscriptionView struct {
	UserID         string     `json:"user_id" yaml:"user_id"`
	Subscribed     bool       `json:"subscribed" yaml:"subscribed"`
	Status         string     `json:"status" yaml:"status"`
	Tier           string     `json:"tier,omitempty" yaml:"tier,omitempty"`
	Interval       string     `json:"billing_interval,omitempty" yaml:"billing_interval,omitempty"`
	PeriodEnd      *time.Time `json:"period_end,omitempty" yaml:"period_end,omitempty"`
	CustomerID     string     `json:"stripe_customer_id,omitempty" yaml:"stripe_customer_id,omitempty"`
	SubscriptionID string     `json:"subscription_id,omitempty" yaml:"subscription_id,omitempty"`
	SyncedAt       *time.Time `json:"synced_at,omitempty" yaml:"synced_at,omitempty"`
	UsageReset     bool       `json:"usage_reset" yaml:"usage_reset"`
}

func newSubscriptionView(userID string, state *domain.SubscriptionState) subscriptionView {
	view := subscriptionView{UserID: userID, Status: string(state.Status())}
	if state == nil {
		return view
	}
	view.Subscribed = state.Subscribed
	view.Tier = state.TierName
	view.Interval = string(state.BillingInterval)
	view.PeriodEnd = state.PeriodEnd
	view.CustomerID = state.StripeCustomerID
	view.SubscriptionID = state.SubscriptionID
	if !state.SyncedAt.IsZero() {
		synced := state.SyncedAt
		view.SyncedAt = &synced
	}
	return view
}

func (a *app) printSubscription(view subscriptionView) error {
	if a.outputFormat != "table" {
		return printOutput(a.out, a.outputFormat, view)
	}
	return printFields(a.out, [][2]string{
		{"user", view.UserID},
		{"status", view.Status},
		{"tier", orDash(view.Tier)},
		{"interval", orDash(view.Interval)},
		{"period end", formatTime(view.PeriodEnd)},
		{"customer", orDash(view.CustomerID)},
		{"subscription", orDash(view.SubscriptionID)},
		{"synced at", formatTime(view.SyncedAt)},
		{"usage reset", strconv.FormatBool(view.UsageReset)},
	})
}

func newSubscriptionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Inspect and refresh subscription state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Show the subscription state stored at the last sync",
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

			state, err := svc.sync.State(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if state == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "user %s has never been synced\n", userID)
			}
			return a.printSubscription(newSubscriptionView(userID.String(), state))
		},
	})

	var email string
	syncCmd := &cobra.Command{
		Use:   "sync <user-id>",
		Short: "Refresh the subscription from Stripe and reconcile usage",
		Long: `Sync looks the user up in Stripe by stored customer id, or by --email on
first contact, stores the result and resets the usage counter when the
tier changed.`,
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
			if svc.billing == nil {
				return errBillingDisabled
			}

			result, err := svc.sync.Sync(cmd.Context(), userID, email, service.TriggerCheck)
			if err != nil {
				return describe(err)
			}

			view := newSubscriptionView(userID.String(), result.State)
			view.UsageReset = result.Reconciliation != nil && result.Reconciliation.Reset
			return a.printSubscription(view)
		},
	}
	syncCmd.Flags().StringVar(&email, "email", "", "email to look the customer up by on first contact")
	cmd.AddCommand(syncCmd)

	return cmd
}
