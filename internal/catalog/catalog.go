// Package catalog holds the tier catalog: the single source of truth mapping
// a tier name to its entitlements.
//
// A Catalog is validated when it is built and is immutable afterwards, so it
// is safe for concurrent use without locking.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DukeRupert/compliq/internal/domain"
	"golang.org/x/text/cases"
)

// ErrTierNotFound is returned by Lookup for names not in the catalog. Callers
// must treat it as a configuration error, never as a fallback to some tier.
var ErrTierNotFound = errors.New("tier not found")

// Normalize returns the canonical key for a tier name. A Caser is stateful,
// so each call gets its own.
func Normalize(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Catalog is an ordered, validated set of tier definitions.
type Catalog struct {
	tiers map[string]domain.TierDefinition
	order []string
}

// New validates defs and builds a catalog. Duplicate names (after case
// folding) and limits that decrease along the rank order are rejected.
func New(defs []domain.TierDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog: no tiers defined")
	}

	sorted := make([]domain.TierDefinition, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	c := &Catalog{
		tiers: make(map[string]domain.TierDefinition, len(sorted)),
		order: make([]string, 0, len(sorted)),
	}

	var prev domain.TierDefinition
	for i, def := range sorted {
		def.Name = Normalize(def.Name)
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if _, dup := c.tiers[def.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate tier %q", def.Name)
		}
		if i > 0 {
			if prev.Rank == def.Rank {
				return nil, fmt.Errorf("catalog: tiers %q and %q share rank %d", prev.Name, def.Name, def.Rank)
			}
			if def.MonthlyUploadLimit < prev.MonthlyUploadLimit {
				return nil, fmt.Errorf("catalog: tier %q upload limit %d is below %q limit %d",
					def.Name, def.MonthlyUploadLimit, prev.Name, prev.MonthlyUploadLimit)
			}
			if def.FileSizeLimitMB < prev.FileSizeLimitMB {
				return nil, fmt.Errorf("catalog: tier %q file size limit %g MB is below %q limit %g MB",
					def.Name, def.FileSizeLimitMB, prev.Name, prev.FileSizeLimitMB)
			}
		}
		c.tiers[def.Name] = def
		c.order = append(c.order, def.Name)
		prev = def
	}

	return c, nil
}

// Lookup returns the definition for name, compared case-insensitively.
func (c *Catalog) Lookup(name string) (domain.TierDefinition, error) {
	def, ok := c.tiers[Normalize(name)]
	if !ok {
		return domain.TierDefinition{}, fmt.Errorf("%w: %q", ErrTierNotFound, name)
	}
	return def, nil
}

// Tiers returns all definitions, lowest rank first.
func (c *Catalog) Tiers() []domain.TierDefinition {
	out := make([]domain.TierDefinition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tiers[name])
	}
	return out
}

// Lowest returns the entry-level tier. Its file size limit also applies to
// free trial documents.
func (c *Catalog) Lowest() domain.TierDefinition {
	return c.tiers[c.order[0]]
}

// Len returns the number of tiers.
func (c *Catalog) Len() int {
	return len(c.order)
}
