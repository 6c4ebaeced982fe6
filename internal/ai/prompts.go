package ai

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/DukeRupert/compliq/internal/domain"
)

// MaxDocumentChars caps how much extracted text is sent to a model.
const MaxDocumentChars = 60000

var euCountries = map[string]string{
	"AT": "Austria", "BE": "Belgium", "BG": "Bulgaria", "HR": "Croatia", "CY": "Cyprus",
	"CZ": "Czechia", "DK": "Denmark", "EE": "Estonia", "FI": "Finland", "FR": "France",
	"DE": "Germany", "GR": "Greece", "HU": "Hungary", "IE": "Ireland", "IT": "Italy",
	"LV": "Latvia", "LT": "Lithuania", "LU": "Luxembourg", "MT": "Malta", "NL": "Netherlands",
	"PL": "Poland", "PT": "Portugal", "RO": "Romania", "SK": "Slovakia", "SI": "Slovenia",
	"ES": "Spain", "SE": "Sweden", "IS": "Iceland", "LI": "Liechtenstein", "NO": "Norway",
}

// SystemPrompt returns the instruction block for a report type.
func SystemPrompt(t domain.ReportType) string {
	switch t {
	case domain.ReportTypeGDPR:
		return "You are a GDPR compliance expert. Assess the document against Regulation (EU) 2016/679 " +
			"and produce a structured report: executive summary, lawful bases, data subject rights, " +
			"security measures, international transfers, identified gaps with article references, " +
			"and prioritised recommendations."
	case domain.ReportTypeCSRD:
		return "You are a CSRD reporting specialist. Assess the document against the Corporate Sustainability " +
			"Reporting Directive and ESRS: double materiality, disclosure coverage per ESRS topic, data " +
			"gaps, and prioritised recommendations."
	default:
		return "You are an ESG analyst. Assess the document's environmental, social and governance " +
			"disclosures: strengths, material gaps, risk areas, and prioritised recommendations."
	}
}

// UserPrompt builds the per-document message.
func UserPrompt(params ReportParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a %s compliance report for the document %q.\n", params.ReportType.Label(), params.Filename)

	if c := params.Context; !c.IsZero() {
		b.WriteString("\nOrganisation context:\n")
		if c.Country != "" {
			name := euCountries[strings.ToUpper(c.Country)]
			if name == "" {
				name = strings.ToUpper(c.Country)
			}
			fmt.Fprintf(&b, "- Country: %s", name)
			if params.ReportType == domain.ReportTypeGDPR {
				b.WriteString(" (include the national supervisory authority and any national GDPR implementation rules)")
			}
			b.WriteString("\n")
		}
		if c.Industry != "" {
			fmt.Fprintf(&b, "- Industry: %s\n", c.Industry)
		}
		if c.CompanySize != "" {
			fmt.Fprintf(&b, "- Company size: %s\n", c.CompanySize)
		}
		if len(c.DataCategories) > 0 {
			fmt.Fprintf(&b, "- Data categories: %s\n", strings.Join(c.DataCategories, ", "))
		}
		if len(c.ProcessingActivities) > 0 {
			fmt.Fprintf(&b, "- Processing activities: %s\n", strings.Join(c.ProcessingActivities, ", "))
		}
	}

	b.WriteString("\nDocument content:\n")
	b.WriteString(DocumentText(params.Document))
	return b.String()
}

// DocumentText returns model-ready text for a document. UTF-8 documents pass
// through; binary formats are reduced to their printable runs, which recovers
// most of the text in PDFs and legacy Word files without a parser.
func DocumentText(doc []byte) string {
	var text string
	if utf8.Valid(doc) && !containsNUL(doc) {
		text = string(doc)
	} else {
		text = printableRuns(doc, 4)
	}
	if len(text) > MaxDocumentChars {
		text = text[:MaxDocumentChars] + "\n[truncated]"
	}
	return text
}

func containsNUL(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return true
		}
	}
	return false
}

func printableRuns(doc []byte, minRun int) string {
	var out strings.Builder
	var run []byte
	flush := func() {
		if len(run) >= minRun {
			out.Write(run)
			out.WriteByte(' ')
		}
		run = run[:0]
	}
	for _, c := range doc {
		if c < utf8.RuneSelf && (unicode.IsPrint(rune(c)) || c == '\n') {
			run = append(run, c)
			continue
		}
		flush()
	}
	flush()
	return strings.TrimSpace(out.String())
}
