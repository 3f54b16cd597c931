// Package formatting renders framework state for humans and scripts.
//
// Views (bundles, wires, packages, services, headers) are built as plain
// Tables and handed to a Formatter for the requested output format: rich
// tables, kubectl-style plain columns, JSON or YAML.
package formatting

import (
	"fmt"
	"io"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatPlain OutputFormat = "plain" // kubectl-style columns
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates a format name. An empty name selects FormatTable.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "":
		return FormatTable, nil
	case FormatTable, FormatPlain, FormatJSON, FormatYAML:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: table, plain, json, yaml)", s)
}

// Options configures the formatter behavior
type Options struct {
	Format    OutputFormat
	NoHeaders bool // Suppress the header row of table formats
	Color     bool // Enable colored output
}

// Table is a titled grid of cells. Keys name the columns in structured
// formats; Headers are what table formats print.
type Table struct {
	Title   string
	Headers []string
	Keys    []string
	Rows    [][]string
	// Empty is printed by table formats when there are no rows.
	Empty string
}

// Records returns the rows as key/value maps for structured output.
func (t Table) Records() []map[string]string {
	keys := t.Keys
	if len(keys) == 0 {
		keys = t.Headers
	}
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(keys))
		for i, k := range keys {
			if i < len(row) {
				rec[k] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Formatter writes tables in one output format.
type Formatter interface {
	Write(w io.Writer, t Table) error
}

// NewFormatter creates the formatter for options.Format.
func NewFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return &JSONFormatter{options: options}
	case FormatYAML:
		return &YAMLFormatter{options: options}
	case FormatPlain:
		return &PlainFormatter{options: options}
	case FormatTable:
		fallthrough
	default:
		return &TableFormatter{options: options}
	}
}
