package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// tierFile is the document `tiers list -o yaml` prints and `tiers apply`
// reads back.
type tierFile struct {
	Tiers []tierEntry `yaml:"tiers" json:"tiers"`
}

type tierEntry struct {
	Name               string   `yaml:"name" json:"name"`
	DisplayName        string   `yaml:"display_name" json:"display_name"`
	Rank               int      `yaml:"rank" json:"rank"`
	MonthlyUploadLimit int      `yaml:"monthly_upload_limit" json:"monthly_upload_limit"`
	FileSizeLimitMB    float64  `yaml:"file_size_limit_mb" json:"file_size_limit_mb"`
	MonthlyPriceCents  int64    `yaml:"monthly_price_cents" json:"monthly_price_cents"`
	YearlyPriceCents   int64    `yaml:"yearly_price_cents" json:"yearly_price_cents"`
	Features           []string `yaml:"features,omitempty" json:"features,omitempty"`
}

func toTierFile(defs []domain.TierDefinition) tierFile {
	f := tierFile{Tiers: make([]tierEntry, 0, len(defs))}
	for _, d := range defs {
		f.Tiers = append(f.Tiers, tierEntry{
			Name:               d.Name,
			DisplayName:        d.DisplayName,
			Rank:               d.Rank,
			MonthlyUploadLimit: d.MonthlyUploadLimit,
			FileSizeLimitMB:    d.FileSizeLimitMB,
			MonthlyPriceCents:  d.MonthlyPriceCents,
			YearlyPriceCents:   d.YearlyPriceCents,
			Features:           d.Features,
		})
	}
	return f
}

func (f tierFile) definitions() []domain.TierDefinition {
	defs := make([]domain.TierDefinition, 0, len(f.Tiers))
	for _, e := range f.Tiers {
		defs = append(defs, domain.TierDefinition{
			Name:               e.Name,
			DisplayName:        e.DisplayName,
			Rank:               e.Rank,
			MonthlyUploadLimit: e.MonthlyUploadLimit,
			FileSizeLimitMB:    e.FileSizeLimitMB,
			MonthlyPriceCents:  e.MonthlyPriceCents,
			YearlyPriceCents:   e.YearlyPriceCents,
			Features:           e.Features,
		})
	}
	return defs
}

// readTierFile decodes a tier file. Unknown keys are rejected so a typo in a
// limit name cannot silently leave the limit at zero.
func readTierFile(r io.Reader) ([]domain.TierDefinition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f tierFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("tier file is empty")
		}
		return nil, fmt.Errorf("parse tier file: %w", err)
	}
	if len(f.Tiers) == 0 {
		return nil, fmt.Errorf("tier file defines no tiers")
	}
	return f.definitions(), nil
}

func loadTierFile(path string) ([]domain.TierDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return readTierFile(bytes.NewReader(data))
}

func renderTiers(w io.Writer, defs []domain.TierDefinition) error {
	t := NewTable(w, "RANK", "NAME", "DISPLAY NAME", "MONTHLY", "YEARLY", "FILE SIZE", "PRICE/MO", "PRICE/YR", "FEATURES")
	for _, d := range defs {
		t.AddRow(
			strconv.Itoa(d.Rank),
			d.Name,
			d.DisplayName,
			strconv.Itoa(d.EffectiveUploadLimit(domain.BillingIntervalMonthly)),
			strconv.Itoa(d.EffectiveUploadLimit(domain.BillingIntervalYearly)),
			formatMB(d.FileSizeLimitMB),
			formatCents(d.PriceCents(domain.BillingIntervalMonthly)),
			formatCents(d.PriceCents(domain.BillingIntervalYearly)),
			orDash(strings.Join(d.Features, ", ")),
		)
	}
	return t.Render()
}

func (a *app) printTiers(defs []domain.TierDefinition) error {
	if a.outputFormat == "table" {
		return renderTiers(a.out, defs)
	}
	return printOutput(a.out, a.outputFormat, toTierFile(defs))
}

func newTiersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Show and change the tier catalog",
	}

	cmd.AddCommand(newTiersListCmd(a))
	cmd.AddCommand(newTiersValidateCmd(a))
	cmd.AddCommand(newTiersApplyCmd(a))
	cmd.AddCommand(newTiersDefaultsCmd(a))
	return cmd
}

func newTiersListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tiers, err := a.tierAdmin(cmd.Context())
			if err != nil {
				return err
			}

			defs, err := tiers.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(defs) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No tiers stored. Run `quotactl tiers defaults | quotactl tiers apply -f -` to seed them.")
				return nil
			}
			return a.printTiers(defs)
		},
	}
}

func newTiersValidateCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a tier file, or the stored catalog when no file is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				defs, err := readTierSource(cmd, file)
				if err != nil {
					return err
				}
				cat, err := catalog.New(defs)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s: %d tiers OK, lowest is %q\n", file, cat.Len(), cat.Lowest().Name)
				return nil
			}

			tiers, err := a.tierAdmin(cmd.Context())
			if err != nil {
				return err
			}
			cat, err := tiers.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "stored catalog: %d tiers OK, lowest is %q\n", cat.Len(), cat.Lowest().Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "tier file to check (- for stdin)")
	return cmd
}

func newTiersApplyCmd(a *app) *cobra.Command {
	var (
		file   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update tiers from a file",
		Long: `Apply writes every tier in the file. Tiers not named in the file are kept.
The catalog that results must still be valid: ranks unique and limits
never decreasing with rank. Running API processes pick the change up on
restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := readTierSource(cmd, file)
			if err != nil {
				return err
			}
			if dryRun {
				if _, err := catalog.New(defs); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%d tiers would be applied\n", len(defs))
				return nil
			}

			tiers, err := a.tierAdmin(cmd.Context())
			if err != nil {
				return err
			}
			cat, err := tiers.Apply(cmd.Context(), defs)
			if err != nil {
				return describe(err)
			}
			return a.printTiers(cat.Tiers())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "tier file to apply (- for stdin)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTiersDefaultsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the built-in tiers as a tier file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printYAML(a.out, toTierFile(catalog.Defaults()))
		},
	}
}

func readTierSource(cmd *cobra.Command, file string) ([]domain.TierDefinition, error) {
	if file == "-" {
		return readTierFile(cmd.InOrStdin())
	}
	return loadTierFile(file)
}

// describe turns a service error into a message fit for a terminal.
func describe(err error) error {
	if domain.ErrorCode(err) == domain.EINVALID {
		return errors.New(domain.ErrorMessage(err))
	}
	return err
}
