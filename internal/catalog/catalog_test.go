package catalog

import (
	"errors"
	"testing"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLookup_CaseInsensitive(t *testing.T) {
	c := MustDefault()

	for _, name := range []string{"starter", "Starter", "STARTER", "  starter "} {
		def, err := c.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, "starter", def.Name)
		assert.Equal(t, 100, def.MonthlyUploadLimit)
		assert.Equal(t, 1.0, def.FileSizeLimitMB)
	}
}

func TestLookup_UnknownTierIsNotFound(t *testing.T) {
	c := MustDefault()

	_, err := c.Lookup("gold")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTierNotFound))

	_, err = c.Lookup("")
	assert.True(t, errors.Is(err, ErrTierNotFound))
}

func TestNew_Validation(t *testing.T) {
	tier := func(name string, rank, uploads int, sizeMB float64) domain.TierDefinition {
		return domain.TierDefinition{Name: name, Rank: rank, MonthlyUploadLimit: uploads, FileSizeLimitMB: sizeMB}
	}

	tests := []struct {
		name    string
		defs    []domain.TierDefinition
		wantErr string
	}{
		{"empty", nil, "no tiers"},
		{"duplicate after folding", []domain.TierDefinition{tier("starter", 1, 10, 1), tier("STARTER", 2, 20, 2)}, "duplicate"},
		{"upload limit decreases", []domain.TierDefinition{tier("starter", 1, 100, 1), tier("professional", 2, 50, 2)}, "upload limit"},
		{"size limit decreases", []domain.TierDefinition{tier("starter", 1, 100, 3), tier("professional", 2, 200, 2)}, "file size"},
		{"shared rank", []domain.TierDefinition{tier("a", 1, 1, 1), tier("b", 1, 2, 2)}, "share rank"},
		{"invalid tier", []domain.TierDefinition{tier("a", 1, -1, 1)}, "upload limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.defs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_OrdersByRank(t *testing.T) {
	defs := Defaults()
	defs[0], defs[2] = defs[2], defs[0]

	c, err := New(defs)
	require.NoError(t, err)

	var names []string
	for _, def := range c.Tiers() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"starter", "professional", "enterprise"}, names)
	assert.Equal(t, "starter", c.Lowest().Name)
	assert.Equal(t, 3, c.Len())
}

func TestNew_AcceptsAnyMonotonicSequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "tiers")
		defs := make([]domain.TierDefinition, n)
		uploads, size := 0, 0.5
		for i := range defs {
			uploads += rapid.IntRange(0, 500).Draw(t, "uploadStep")
			size += float64(rapid.IntRange(0, 4).Draw(t, "sizeStep"))
			defs[i] = domain.TierDefinition{
				Name:               string(rune('a' + i)),
				Rank:               i,
				MonthlyUploadLimit: uploads,
				FileSizeLimitMB:    size,
			}
		}

		c, err := New(defs)
		if err != nil {
			t.Fatalf("monotonic catalog rejected: %v", err)
		}
		tiers := c.Tiers()
		for i := 1; i < len(tiers); i++ {
			if tiers[i].MonthlyUploadLimit < tiers[i-1].MonthlyUploadLimit {
				t.Fatalf("tiers out of order: %+v", tiers)
			}
		}
	})
}
