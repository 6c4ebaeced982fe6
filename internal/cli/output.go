package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Table renders data as a formatted table.
type Table struct {
	headers []string
	rows    [][]string
	writer  io.Writer
}

// NewTable creates a new table with the given headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		headers: headers,
		writer:  w,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cols ...string) {
	t.rows = append(t.rows, cols)
}

// Render writes the table.
func (t *Table) Render() error {
	w := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(t.headers, "\t"))

	sep := make([]string, len(t.headers))
	for i, h := range t.headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))

	for _, row := range t.rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	return w.Flush()
}

// printOutput prints data as JSON or YAML. Table output is rendered by each
// command, since only the command knows which columns matter.
func printOutput(w io.Writer, format string, data interface{}) error {
	switch format {
	case "yaml":
		return printYAML(w, data)
	default:
		return printJSON(w, data)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(data)
}

// printFields renders key/value pairs as a two-column table.
func printFields(w io.Writer, fields [][2]string) error {
	t := NewTable(w, "FIELD", "VALUE")
	for _, f := range fields {
		t.AddRow(f[0], f[1])
	}
	return t.Render()
}

func formatMB(mb float64) string {
	return strconv.FormatFloat(mb, 'f', -1, 64) + " MB"
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
