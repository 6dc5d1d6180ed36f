// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table prints rows of values as aligned text, CSV or JSON.
package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/stockparfait/errors"
)

// Row of a table, as strings in the column order.
type Row interface {
	CSV() []string
}

// Strings is a Row of literal cells.
type Strings []string

func (s Strings) CSV() []string { return s }

// Table of rows with an optional header.
type Table struct {
	Header []string
	Rows   []Row
}

// NewTable with the given column headers, if any.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// AddRow appends rows to the table.
func (t *Table) AddRow(rows ...Row) *Table {
	t.Rows = append(t.Rows, rows...)
	return t
}

// Format of the output.
type Format string

const (
	Text Format = "text"
	CSV  Format = "csv"
	JSON Format = "json"
)

// ParseFormat checks the format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Text, CSV, JSON:
		return f, nil
	}
	return "", errors.Reason("unknown format '%s'; expected text, csv or json", s)
}

// Params of the output.
type Params struct {
	Rows        int  // max. number of rows; 0 means all
	Last        bool // print the last Rows rows rather than the first
	NoHeader    bool // omit the header (text and CSV)
	MaxColWidth int  // text only; 0 is unlimited, otherwise at least 4
}

func (t *Table) selected(p Params) []Row {
	if p.Rows <= 0 || p.Rows >= len(t.Rows) {
		return t.Rows
	}
	if p.Last {
		return t.Rows[len(t.Rows)-p.Rows:]
	}
	return t.Rows[:p.Rows]
}

// Write the table in the given format.
func (t *Table) Write(w io.Writer, f Format, p Params) error {
	switch f {
	case Text:
		return t.WriteText(w, p)
	case CSV:
		return t.WriteCSV(w, p)
	case JSON:
		return t.WriteJSON(w, p)
	}
	return errors.Reason("unknown format '%s'", f)
}

// WriteCSV writes the table in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for _, r := range t.selected(p) {
		if err := cw.Write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush CSV")
	}
	return nil
}

// jsonValue keeps numbers as numbers; an empty cell is null.
func jsonValue(s string) interface{} {
	if s == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil && json.Valid([]byte(s)) {
		return json.Number(s)
	}
	return s
}

// WriteJSON writes a JSON array with one object per row keyed by the header,
// or one array per row when there is no header.
func (t *Table) WriteJSON(w io.Writer, p Params) error {
	rows := t.selected(p)
	out := make([]interface{}, 0, len(rows))
	for i, r := range rows {
		cells := r.CSV()
		if len(t.Header) == 0 {
			vs := make([]interface{}, len(cells))
			for j, c := range cells {
				vs[j] = jsonValue(c)
			}
			out = append(out, vs)
			continue
		}
		if len(cells) != len(t.Header) {
			return errors.Reason("row %d has %d cells, header has %d",
				i, len(cells), len(t.Header))
		}
		obj := make(map[string]interface{}, len(cells))
		for j, c := range cells {
			obj[t.Header[j]] = jsonValue(c)
		}
		out = append(out, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return errors.Annotate(err, "failed to write JSON")
	}
	return nil
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width-2]) + ".."
}

// columnWidths of the rows, capped at maxWidth when it's positive.
func columnWidths(rows [][]string, maxWidth int) ([]int, error) {
	var widths []int
	for _, row := range rows {
		if len(row) == 0 {
			return nil, errors.Reason("empty row")
		}
		if widths == nil {
			widths = make([]int, len(row))
		}
		if len(row) != len(widths) {
			return nil, errors.Reason("row size [%d] != expected size [%d]",
				len(row), len(widths))
		}
		for i, c := range row {
			n := utf8.RuneCountInString(c)
			if maxWidth > 0 && n > maxWidth {
				n = maxWidth
			}
			if n > widths[i] {
				widths[i] = n
			}
		}
	}
	return widths, nil
}

// WriteText writes the table aligned in columns: the first column to the
// left, the rest to the right.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	var lines [][]string
	header := !p.NoHeader && len(t.Header) > 0
	if header {
		lines = append(lines, t.Header)
	}
	for _, r := range t.selected(p) {
		lines = append(lines, r.CSV())
	}
	widths, err := columnWidths(lines, p.MaxColWidth)
	if err != nil {
		return errors.Annotate(err, "bad table")
	}
	if header {
		sep := make([]string, len(widths))
		for i, n := range widths {
			sep[i] = strings.Repeat("-", n)
		}
		lines = append(lines[:1], append([][]string{sep}, lines[1:]...)...)
	}
	for _, line := range lines {
		cells := make([]string, len(line))
		for i, c := range line {
			c = truncate(c, widths[i])
			if i == 0 {
				cells[i] = fmt.Sprintf("%-*s", widths[i], c)
			} else {
				cells[i] = fmt.Sprintf("%*s", widths[i], c)
			}
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, " | ")); err != nil {
			return errors.Annotate(err, "failed to write a line")
		}
	}
	return nil
}
