package formatting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

func (f *TableFormatter) Write(w io.Writer, t Table) error {
	if len(t.Rows) == 0 {
		_, err := fmt.Fprintln(w, f.formatEmptyMessage(t))
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	if t.Title != "" {
		tw.SetTitle(t.Title)
	}

	if !f.options.NoHeaders {
		header := make(table.Row, len(t.Headers))
		for i, h := range t.Headers {
			header[i] = f.colorize(text.FgHiCyan, h)
		}
		tw.AppendHeader(header)
	}
	for _, row := range t.Rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = f.colorCell(t.Headers, i, cell)
		}
		tw.AppendRow(r)
	}
	tw.Render()
	return nil
}

// colorCell highlights bundle states.
func (f *TableFormatter) colorCell(headers []string, i int, cell string) string {
	if i >= len(headers) || headers[i] != "STATE" {
		return cell
	}
	switch cell {
	case "ACTIVE":
		return f.colorize(text.FgGreen, cell)
	case "RESOLVED":
		return f.colorize(text.FgHiBlue, cell)
	case "INSTALLED":
		return f.colorize(text.FgYellow, cell)
	case "STARTING", "STOPPING":
		return f.colorize(text.FgHiYellow, cell)
	}
	return cell
}

func (f *TableFormatter) colorize(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

func (f *TableFormatter) formatEmptyMessage(t Table) string {
	msg := t.Empty
	if msg == "" {
		msg = "No items found"
	}
	return f.colorize(text.FgYellow, msg)
}
