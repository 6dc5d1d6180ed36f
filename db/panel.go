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
	"context"
	"math"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"golang.org/x/exp/slices"
)

// Fill is the method of filling the missing values of a Panel.
type Fill int

const (
	FillNone Fill = iota
	FillForward
	FillBackward
)

// ParseFill converts "none", "ffill" or "bfill" into a Fill.
func ParseFill(s string) (Fill, error) {
	switch s {
	case "none", "":
		return FillNone, nil
	case "ffill":
		return FillForward, nil
	case "bfill":
		return FillBackward, nil
	}
	return FillNone, errors.Reason("unknown fill method '%s'", s)
}

// fillColumn replaces NaN values by the nearest preceding (or following, when
// backward) non-NaN value in the same column.
func (d *Dataset) fillColumn(j int, backward bool) {
	last := math.NaN()
	for k := range d.Rows {
		i := k
		if backward {
			i = len(d.Rows) - 1 - k
		}
		v := d.Rows[i].Values[j]
		if math.IsNaN(v) {
			d.Rows[i].Values[j] = last
			continue
		}
		last = v
	}
}

// Panel collects a single field of the data type across the tickers into a
// dataset with a column per ticker, indexed by the union of their timestamps.
// When tickers is empty, all the stored tickers are used. Tickers rejected by
// the constraints or without the field are skipped; the constrained fields are
// ignored. Values missing for a ticker are NaN, unless filled.
func (db *DB) Panel(ctx context.Context, tickers []string, dataType, field string, c *Constraints, fill Fill) *Dataset {
	if c == nil {
		c = NewConstraints()
	}
	if len(tickers) == 0 {
		tickers = db.Tickers(ctx)
	}
	var columns []string
	times := make(map[int64]time.Time)
	values := make(map[string]map[int64]float64) // ticker -> timestamp -> value
	for _, t := range tickers {
		if !c.CheckTicker(t) || slices.Contains(columns, t) {
			continue
		}
		d, ok := db.Load(ctx, t, dataType)[dataType]
		if !ok || d.Empty() {
			continue
		}
		j := d.ColumnIndex(field)
		if j < 0 {
			logging.Debugf(ctx, "%s: no field '%s' in %s data", t, field, dataType)
			continue
		}
		columns = append(columns, t)
		values[t] = make(map[int64]float64)
		for _, r := range d.Rows {
			if !c.CheckTime(r.Time) {
				continue
			}
			k := r.Time.UnixNano()
			times[k] = r.Time
			values[t][k] = r.Values[j]
		}
	}
	res := NewDataset(columns...)
	for k, tm := range times {
		row := make([]float64, len(columns))
		for i, t := range columns {
			v, ok := values[t][k]
			if !ok {
				v = math.NaN()
			}
			row[i] = v
		}
		res.AddRow(tm, row...)
	}
	res.Sort()
	if fill != FillNone {
		for j := range columns {
			res.fillColumn(j, fill == FillBackward)
		}
	}
	return res
}

// Span is the date range covered by all the datasets; zero dates if none have
// rows.
func Span(data map[string]*Dataset) (start, end Date) {
	var starts, ends []Date
	for _, d := range data {
		if e, ok := d.Earliest(); ok {
			starts = append(starts, NewDateFromTime(e))
		}
		if l, ok := d.Latest(); ok {
			ends = append(ends, NewDateFromTime(l))
		}
	}
	return MinDate(starts...), MaxDate(ends...)
}
