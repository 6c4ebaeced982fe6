package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

type trialView struct {
	UserID    string `json:"user_id" yaml:"user_id"`
	TrialUsed bool   `json:"trial_used" yaml:"trial_used"`
}

func newTrialCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trial",
		Short: "Inspect the free trial flag",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Show whether the user has used the free trial",
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

			state, err := svc.trial.State(cmd.Context(), userID)
			if err != nil {
				return err
			}

			view := trialView{UserID: userID.String(), TrialUsed: state.TrialUsed}
			if a.outputFormat != "table" {
				return printOutput(a.out, a.outputFormat, view)
			}
			return printFields(a.out, [][2]string{
				{"user", view.UserID},
				{"trial used", strconv.FormatBool(view.TrialUsed)},
			})
		},
	})

	return cmd
}
