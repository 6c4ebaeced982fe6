package cli

import (
	"fmt"

	"github.com/DukeRupert/compliq/internal"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			if err := internal.RunMigrations(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			version, err := internal.MigrationVersion(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "schema at version %d\n", version)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			version, err := internal.MigrationVersion(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "schema at version %d\n", version)
			return nil
		},
	})

	return cmd
}
