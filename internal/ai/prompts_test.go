package ai

import (
	"strings"
	"testing"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestUserPrompt_IncludesContext(t *testing.T) {
	prompt := UserPrompt(ReportParams{
		Document:   []byte("We store customer emails."),
		Filename:   "privacy.txt",
		ReportType: domain.ReportTypeGDPR,
		Context: &domain.ComplianceContext{
			Country:        "de",
			Industry:       "Retail",
			DataCategories: []string{"contact", "payment"},
		},
	})

	assert.Contains(t, prompt, "GDPR compliance report")
	assert.Contains(t, prompt, "Country: Germany")
	assert.Contains(t, prompt, "supervisory authority")
	assert.Contains(t, prompt, "Data categories: contact, payment")
	assert.Contains(t, prompt, "We store customer emails.")
}

func TestUserPrompt_NoContext(t *testing.T) {
	prompt := UserPrompt(ReportParams{Document: []byte("x"), Filename: "a.txt", ReportType: domain.ReportTypeESG})

	assert.NotContains(t, prompt, "Organisation context")
}

func TestDocumentText(t *testing.T) {
	t.Run("utf8 passes through", func(t *testing.T) {
		assert.Equal(t, "Grüße aus Berlin", DocumentText([]byte("Grüße aus Berlin")))
	})

	t.Run("binary reduced to printable runs", func(t *testing.T) {
		doc := []byte("%PDF\x00\x01\x02Data retention policy\x00\xff\xfeab\x00")
		got := DocumentText(doc)
		assert.Contains(t, got, "Data retention policy")
		assert.NotContains(t, got, "ab")
	})

	t.Run("truncated", func(t *testing.T) {
		got := DocumentText([]byte(strings.Repeat("a", MaxDocumentChars+10)))
		assert.True(t, strings.HasSuffix(got, "[truncated]"))
	})
}
