package cli

import (
	"fmt"

	"github.com/DukeRupert/compliq/internal/jobs"
	"github.com/DukeRupert/compliq/internal/worker"
	"github.com/spf13/cobra"
)

func newJobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run scheduled jobs by hand",
	}

	var batch int
	run := &cobra.Command{
		Use:       "run <job>",
		Short:     "Run a job once and wait for it",
		Long:      "Run executes a job the API server normally runs on its schedule.\n\nJobs:\n  sweep   re-sync users whose billing period has ended",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"sweep"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "sweep" {
				return fmt.Errorf("unknown job %q", args[0])
			}

			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			if svc.billing == nil {
				return errBillingDisabled
			}
			if batch <= 0 {
				batch = a.cfg.SubscriptionSweepBatch
			}

			w, err := worker.New(worker.DefaultConfig(), a.logger)
			if err != nil {
				return err
			}
			sweep := jobs.NewSweepSubscriptionsHandler(svc.sync, batch, a.logger)
			if err := w.Register(a.cfg.SubscriptionSweepSchedule, sweep); err != nil {
				return err
			}

			if err := w.RunNow(cmd.Context(), jobs.JobTypeSweepSubscriptions); err != nil {
				return fmt.Errorf("%s failed: %w", jobs.JobTypeSweepSubscriptions, err)
			}
			fmt.Fprintf(a.out, "%s finished\n", jobs.JobTypeSweepSubscriptions)
			return nil
		},
	}
	run.Flags().IntVar(&batch, "batch", 0, "users to sync in one run (default SUBSCRIPTION_SWEEP_BATCH)")
	cmd.AddCommand(run)

	return cmd
}
