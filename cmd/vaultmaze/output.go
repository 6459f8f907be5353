package main

// ---------------------------------------------------------------------------
// output.go — format flag, table rendering, output helpers
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// OutputFormat enumerates supported output formats.
type OutputFormat int

const (
	FormatTable OutputFormat = iota
	FormatJSON
)

// parseFormat converts a --format string to an OutputFormat.
func parseFormat(s string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatTable
	}
}

// writeJSON pretty-prints a value as JSON.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---------------------------------------------------------------------------
// Table renderer — auto-sized columns with box-drawing borders
// ---------------------------------------------------------------------------

// Table renders aligned, bordered tables to a writer.
type Table struct {
	headers []string
	rows    [][]string
	w       io.Writer
}

// NewTable creates a table with the given column headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{headers: headers, w: w}
}

// AddRow appends a row. Values are matched positionally to headers.
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.headers))
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		}
	}
	t.rows = append(t.rows, row)
}

// Render writes the table.
func (t *Table) Render() {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, v := range row {
			if len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}

	line := func(left, mid, right string) {
		fmt.Fprint(t.w, left)
		for i, w := range widths {
			fmt.Fprint(t.w, strings.Repeat("─", w+2))
			if i < len(widths)-1 {
				fmt.Fprint(t.w, mid)
			}
		}
		fmt.Fprintln(t.w, right)
	}

	line("┌", "┬", "┐")
	fmt.Fprint(t.w, "│")
	for i, h := range t.headers {
		fmt.Fprintf(t.w, " %-*s │", widths[i], h)
	}
	fmt.Fprintln(t.w)
	line("├", "┼", "┤")
	for _, row := range t.rows {
		fmt.Fprint(t.w, "│")
		for i, v := range row {
			fmt.Fprintf(t.w, " %-*s │", widths[i], v)
		}
		fmt.Fprintln(t.w)
	}
	line("└", "┴", "┘")
}
