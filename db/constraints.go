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
	"time"
)

// Constraints to filter the tickers and their time series.  Zero value means no
// constraints.
type Constraints struct {
	Tickers        map[string]struct{}
	ExcludeTickers map[string]struct{}
	Fields         []string // columns to keep, in this order; nil = all
	Start          Date
	End            Date
}

// NewConstraints creates a new Constraints with no constraints.
func NewConstraints() *Constraints {
	return &Constraints{
		Tickers:        make(map[string]struct{}),
		ExcludeTickers: make(map[string]struct{}),
	}
}

// ExcludeTicker adds tickers to be ignored.
func (c *Constraints) ExcludeTicker(tickers ...string) *Constraints {
	for _, tk := range tickers {
		c.ExcludeTickers[tk] = struct{}{}
	}
	return c
}

// Ticker adds tickers to the constraints.
func (c *Constraints) Ticker(tickers ...string) *Constraints {
	for _, tk := range tickers {
		c.Tickers[tk] = struct{}{}
	}
	return c
}

// Field adds columns to keep.
func (c *Constraints) Field(fields ...string) *Constraints {
	c.Fields = append(c.Fields, fields...)
	return c
}

// StartAt adds start date to the Constraints.
func (c *Constraints) StartAt(dt Date) *Constraints {
	c.Start = dt
	return c
}

// EndAt adds end date to the Constraints.
func (c *Constraints) EndAt(dt Date) *Constraints {
	c.End = dt
	return c
}

// CheckTicker whether it satisfies the constraints.
func (c *Constraints) CheckTicker(ticker string) bool {
	if len(c.ExcludeTickers) > 0 {
		if _, ok := c.ExcludeTickers[ticker]; ok {
			return false
		}
	}
	if len(c.Tickers) > 0 {
		if _, ok := c.Tickers[ticker]; !ok {
			return false
		}
	}
	return true
}

// CheckDates checks that the date range is entirely within the constrained
// range. Both ends are inclusive.
func (c *Constraints) CheckDates(start, end Date) bool {
	return start.InRange(c.Start, c.End) && end.InRange(c.Start, c.End)
}

// CheckTime checks the calendar date (in UTC) of the timestamp.
func (c *Constraints) CheckTime(t time.Time) bool {
	d := NewDateFromTime(t.UTC())
	return c.CheckDates(d, d)
}

// Apply returns a new dataset with the rows within the date range and only the
// constrained fields. Fields missing from the dataset are ignored.
func (c *Constraints) Apply(d *Dataset) *Dataset {
	columns := d.Columns
	if len(c.Fields) > 0 {
		columns = nil
		for _, f := range c.Fields {
			if d.ColumnIndex(f) >= 0 {
				columns = append(columns, f)
			}
		}
	}
	res := NewDataset(columns...)
	for _, r := range d.Rows {
		if !c.CheckTime(r.Time) {
			continue
		}
		res.Rows = append(res.Rows, Row{Time: r.Time, Values: d.project(r, columns)})
	}
	return res
}
