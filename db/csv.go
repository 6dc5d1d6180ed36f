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

package db

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/slices"
)

// CSVConfig describes the layout of a CSV file with timestamped numeric data.
type CSVConfig struct {
	DateColumn string   // default: "Date"
	Columns    []string // columns to import; default: all except DateColumn
	// Intraday keeps the time of day. Otherwise timestamps are truncated to the
	// calendar date, as in the daily datasets.
	Intraday bool
}

// NewCSVConfig creates a default CSVConfig.
func NewCSVConfig() *CSVConfig {
	return &CSVConfig{DateColumn: IndexColumn}
}

// parseFloat parses a CSV number; an empty or unparsable value is missing.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ReadCSVDataset reads a CSV with a header row into a sorted Dataset. Numeric
// values that fail to parse are stored as missing. A row with an unparsable
// date is an error.
func ReadCSVDataset(r io.Reader, c *CSVConfig) (*Dataset, error) {
	if c == nil {
		c = NewCSVConfig()
	}
	csvReader := csv.NewReader(r)
	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read dataset from CSV")
	}
	if len(rows) == 0 {
		return nil, errors.Reason("CSV requires a header row")
	}
	header := rows[0]
	rows = rows[1:]
	dateCol := slices.Index(header, c.DateColumn)
	if dateCol < 0 {
		return nil, errors.Reason("CSV has no date column '%s'", c.DateColumn)
	}
	columns := c.Columns
	if len(columns) == 0 {
		for i, h := range header {
			if i != dateCol {
				columns = append(columns, h)
			}
		}
	}
	colMap := make([]int, len(columns))
	for j, name := range columns {
		if colMap[j] = slices.Index(header, name); colMap[j] < 0 {
			return nil, errors.Reason("CSV has no column '%s'", name)
		}
	}
	d := NewDataset(columns...)
	for i, row := range rows {
		if dateCol >= len(row) {
			return nil, errors.Reason("row %d is too short", i+1)
		}
		t, err := parseTime(strings.TrimSpace(row[dateCol]))
		if err != nil {
			return nil, errors.Annotate(err, "failed to parse date in row %d", i+1)
		}
		if !c.Intraday {
			t = NewDateFromTime(t).ToTime()
		}
		values := make([]float64, len(columns))
		for j, k := range colMap {
			values[j] = math.NaN()
			if k < len(row) {
				values[j] = parseFloat(row[k])
			}
		}
		d.AddRow(t, values...)
	}
	d.Sort()
	return d, nil
}
