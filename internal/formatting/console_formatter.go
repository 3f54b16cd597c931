package formatting

import (
	"fmt"
	"io"
	"strings"
)

// PlainFormatter prints kubectl-style columns without box-drawing
// characters, which keeps the output easy to pipe into grep, awk or cut.
type PlainFormatter struct {
	options Options
}

func (f *PlainFormatter) Write(w io.Writer, t Table) error {
	if len(t.Rows) == 0 && f.options.NoHeaders {
		return nil
	}

	widths := make([]int, len(t.Headers))
	headers := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = strings.ToUpper(h)
		widths[i] = len(headers[i])
	}
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		normalized := make([]string, len(headers))
		for i := range headers {
			if i < len(row) {
				normalized[i] = row[i]
				if len(row[i]) > widths[i] {
					widths[i] = len(row[i])
				}
			}
		}
		rows = append(rows, normalized)
	}

	if !f.options.NoHeaders {
		if err := printRow(w, headers, widths); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := printRow(w, row, widths); err != nil {
			return err
		}
	}
	return nil
}

const minPadding = 3

func printRow(w io.Writer, row []string, widths []int) error {
	var sb strings.Builder
	for i, cell := range row {
		if i == len(row)-1 {
			sb.WriteString(cell)
			continue
		}
		sb.WriteString(fmt.Sprintf("%-*s", widths[i]+minPadding, cell))
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	return err
}
