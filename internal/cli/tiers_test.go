package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTiers = `tiers:
  - name: starter
    display_name: Starter
    rank: 1
    monthly_upload_limit: 100
    file_size_limit_mb: 1
  - name: Team
    display_name: Team
    rank: 2
    monthly_upload_limit: 400
    file_size_limit_mb: 2.5
    features: [audit_export]
`

func writeTierFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadTierFile(t *testing.T) {
	defs, err := readTierFile(strings.NewReader(validTiers))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	team := defs[1]
	assert.Equal(t, "Team", team.Name)
	assert.Equal(t, 400, team.MonthlyUploadLimit)
	assert.Equal(t, 2.5, team.FileSizeLimitMB)
	assert.Equal(t, []string{"audit_export"}, team.Features)
}

func TestReadTierFile_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", "empty"},
		{"no tiers", "tiers: []\n", "no tiers"},
		{"unknown key", "tiers:\n  - name: starter\n    monthly_uploads: 100\n", "monthly_uploads"},
		{"not yaml", "tiers: [", "parse tier file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readTierFile(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTierFile_RoundTripsDefaults(t *testing.T) {
	out, err := run(t, "", "tiers", "defaults")
	require.NoError(t, err)

	defs, err := readTierFile(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, catalog.Defaults(), defs)
}

func TestTiersValidate_File(t *testing.T) {
	out, err := run(t, "", "tiers", "validate", "-f", writeTierFile(t, validTiers))
	require.NoError(t, err)
	assert.Contains(t, out, `2 tiers OK, lowest is "starter"`)
}

func TestTiersValidate_Stdin(t *testing.T) {
	out, err := run(t, validTiers, "tiers", "validate", "-f", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "-: 2 tiers OK")
}

func TestTiersValidate_DecreasingLimit(t *testing.T) {
	broken := strings.Replace(validTiers, "monthly_upload_limit: 400", "monthly_upload_limit: 40", 1)

	_, err := run(t, "", "tiers", "validate", "-f", writeTierFile(t, broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"team" upload limit 40 is below "starter"`)
}

func TestTiersApply_DryRun(t *testing.T) {
	out, err := run(t, "", "tiers", "apply", "--dry-run", "-f", writeTierFile(t, validTiers))
	require.NoError(t, err)
	assert.Equal(t, "2 tiers would be applied\n", out)
}

func TestTiersApply_RequiresFile(t *testing.T) {
	_, err := run(t, "", "tiers", "apply")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"file" not set`)
}

func TestRenderTiers(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderTiers(&buf, catalog.MustDefault().Tiers()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "RANK"))
	assert.Regexp(t, `^1\s+starter\s+Starter\s+100\s+1200\s+1 MB`, lines[2])
	assert.Regexp(t, `^3\s+enterprise\s+Enterprise\s+1000\s+12000\s+3 MB\s+799\.00\s+8617\.20\s+gdpr_reports`, lines[4])
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := run(t, "", "-o", "xml", "tiers", "defaults")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "xml"`)
}
