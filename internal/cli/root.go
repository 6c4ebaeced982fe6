// Package cli implements quotactl, the operator tool for the quota service.
// It talks to the same database the API uses and runs the same services, so
// what it prints is exactly what the API would answer.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/DukeRupert/compliq/internal"
	"github.com/DukeRupert/compliq/internal/billing"
	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/DukeRupert/compliq/internal/service"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// app holds state shared by all commands. Everything that touches the
// environment is opened lazily so commands like `tiers validate --file`
// work without a database.
type app struct {
	outputFormat string
	out          io.Writer

	cfg    *internal.Config
	logger *slog.Logger
	db     *sql.DB
	repo   repository.Querier
}

// services is the service graph the API builds in cmd/server.
type services struct {
	catalog  *catalog.Catalog
	billing  billing.Service
	tiers    service.TierAdmin
	resolver service.EntitlementResolver
	ledger   service.UsageLedger
	trial    service.FreeTrialGate
	gate     service.QuotaGate
	sync     service.SubscriptionSync
}

// NewRootCmd builds the quotactl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	root := &cobra.Command{
		Use:   "quotactl",
		Short: "Inspect and administer compliance upload quotas",
		Long: `quotactl reads and changes the tier catalog, inspects a user's usage,
trial and subscription state, and runs maintenance jobs against the
quota service database.

Configuration comes from the same environment variables (or .env file)
as the API server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			switch a.outputFormat {
			case "table", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unknown output format %q (use table, json or yaml)", a.outputFormat)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.outputFormat, "output", "o", "table", "output format: table, json, yaml")

	root.AddCommand(newTiersCmd(a))
	root.AddCommand(newUsageCmd(a))
	root.AddCommand(newTrialCmd(a))
	root.AddCommand(newSubscriptionCmd(a))
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newTokenCmd(a))
	root.AddCommand(newJobsCmd(a))

	return root
}

// Execute runs quotactl with ctx bound to every command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) config() (*internal.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	// Logs go to stderr so -o json output stays machine readable.
	a.logger = internal.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel).With("component", "quotactl")
	return cfg, nil
}

func (a *app) database(ctx context.Context) (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}

	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	a.db = db
	a.repo = repository.New(db)
	return db, nil
}

func (a *app) queries(ctx context.Context) (repository.Querier, error) {
	if _, err := a.database(ctx); err != nil {
		return nil, err
	}
	return a.repo, nil
}

// tierAdmin works on an empty or invalid catalog, unlike services.
func (a *app) tierAdmin(ctx context.Context) (service.TierAdmin, error) {
	repo, err := a.queries(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewTierAdmin(repo, a.logger), nil
}

// services loads the tier catalog and wires the service graph.
func (a *app) services(ctx context.Context) (*services, error) {
	repo, err := a.queries(ctx)
	if err != nil {
		return nil, err
	}
	cfg := a.cfg

	tiers := service.NewTierAdmin(repo, a.logger)
	cat, err := tiers.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tier catalog: %w", err)
	}

	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.Prices())
	}

	resolver := service.NewEntitlementResolver(repo, cat, a.logger)
	ledger := service.NewUsageLedger(repo, resolver, a.logger)
	trial := service.NewFreeTrialGate(repo, a.logger)

	return &services{
		catalog:  cat,
		billing:  billingService,
		tiers:    tiers,
		resolver: resolver,
		ledger:   ledger,
		trial:    trial,
		gate:     service.NewQuotaGate(resolver, ledger, trial, cat, a.logger),
		sync:     service.NewSubscriptionSync(repo, billingService, resolver, ledger, a.logger),
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

func parseUserID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q: %w", arg, err)
	}
	return id, nil
}
