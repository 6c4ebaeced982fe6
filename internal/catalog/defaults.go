package catalog

import "github.com/DukeRupert/compliq/internal/domain"

// Defaults returns the plans seeded by the initial migration. Prices are in
// euro cents; yearly prices carry a 10% discount on twelve months.
func Defaults() []domain.TierDefinition {
	return []domain.TierDefinition{
		{
			Name:               "starter",
			DisplayName:        "Starter",
			Rank:               1,
			MonthlyUploadLimit: 100,
			FileSizeLimitMB:    1,
			MonthlyPriceCents:  19900,
			YearlyPriceCents:   214920,
			Features:           []string{"gdpr_reports", "email_support"},
		},
		{
			Name:               "professional",
			DisplayName:        "Professional",
			Rank:               2,
			MonthlyUploadLimit: 250,
			FileSizeLimitMB:    2,
			MonthlyPriceCents:  39900,
			YearlyPriceCents:   430920,
			Features:           []string{"gdpr_reports", "csrd_reports", "esg_reports", "priority_support"},
		},
		{
			Name:               "enterprise",
			DisplayName:        "Enterprise",
			Rank:               3,
			MonthlyUploadLimit: 1000,
			FileSizeLimitMB:    3,
			MonthlyPriceCents:  79900,
			YearlyPriceCents:   861720,
			Features:           []string{"gdpr_reports", "csrd_reports", "esg_reports", "dedicated_support", "custom_frameworks"},
		},
	}
}

// MustDefault builds the default catalog, panicking on error. For tests.
func MustDefault() *Catalog {
	c, err := New(Defaults())
	if err != nil {
		panic(err)
	}
	return c
}
