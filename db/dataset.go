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
	"math"
	"strconv"
	"time"

	"golang.org/x/exp/slices"
)

// Row is a single timestamped row of a Dataset. Values are aligned with the
// Dataset's columns, and NaN represents a missing value.
type Row struct {
	Time   time.Time
	Values []float64
}

// FormatTime prints midnight UTC timestamps as dates, and others with the time
// of day.
func FormatTime(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// FormatFloat prints a value for CSV and text output; NaN is an empty string.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CSV implements table.Row.
func (r Row) CSV() []string {
	res := []string{FormatTime(r.Time)}
	for _, v := range r.Values {
		res = append(res, FormatFloat(v))
	}
	return res
}

// Dataset is a table of numeric columns indexed by timestamp.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// NewDataset creates an empty Dataset with the given columns.
func NewDataset(columns ...string) *Dataset {
	return &Dataset{Columns: columns}
}

// AddRow appends a row to the dataset and returns the dataset for chaining.
// Missing trailing values are set to NaN, and values beyond the number of
// columns are ignored. The time is stored in UTC.
func (d *Dataset) AddRow(t time.Time, values ...float64) *Dataset {
	row := Row{Time: t.UTC(), Values: make([]float64, len(d.Columns))}
	for i := range row.Values {
		if i < len(values) {
			row.Values[i] = values[i]
		} else {
			row.Values[i] = math.NaN()
		}
	}
	d.Rows = append(d.Rows, row)
	return d
}

// Header for the tabular output of the dataset rows.
func (d *Dataset) Header() []string {
	return append([]string{IndexColumn}, d.Columns...)
}

// Len is the number of rows. It is safe to call on nil.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Empty checks if the dataset has no rows. It is safe to call on nil.
func (d *Dataset) Empty() bool {
	return d.Len() == 0
}

// ColumnIndex returns the index of the named column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	return slices.Index(d.Columns, name)
}

// Column returns a copy of the named column's values, or nil if the column does
// not exist.
func (d *Dataset) Column(name string) []float64 {
	j := d.ColumnIndex(name)
	if j < 0 {
		return nil
	}
	res := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		res[i] = r.Values[j]
	}
	return res
}

// Times returns the index of the dataset.
func (d *Dataset) Times() []time.Time {
	res := make([]time.Time, len(d.Rows))
	for i, r := range d.Rows {
		res[i] = r.Time
	}
	return res
}

// Latest returns the maximum timestamp of the index. The rows are not assumed
// to be sorted.
func (d *Dataset) Latest() (time.Time, bool) {
	if d.Empty() {
		return time.Time{}, false
	}
	t := d.Rows[0].Time
	for _, r := range d.Rows[1:] {
		if r.Time.After(t) {
			t = r.Time
		}
	}
	return t, true
}

// Earliest returns the minimum timestamp of the index.
func (d *Dataset) Earliest() (time.Time, bool) {
	if d.Empty() {
		return time.Time{}, false
	}
	t := d.Rows[0].Time
	for _, r := range d.Rows[1:] {
		if r.Time.Before(t) {
			t = r.Time
		}
	}
	return t, true
}

// Sort the rows by timestamp in place, preserving the order of equal
// timestamps.
func (d *Dataset) Sort() {
	slices.SortStableFunc(d.Rows, func(a, b Row) int {
		return a.Time.Compare(b.Time)
	})
}

// project returns the row values re-aligned to the given columns.
func (d *Dataset) project(r Row, columns []string) []float64 {
	res := make([]float64, len(columns))
	for i, c := range columns {
		res[i] = math.NaN()
		if j := d.ColumnIndex(c); j >= 0 {
			res[i] = r.Values[j]
		}
	}
	return res
}

// unionColumns preserves the order of a, followed by the new columns of b.
func unionColumns(a, b []string) []string {
	res := append([]string{}, a...)
	for _, c := range b {
		if !slices.Contains(res, c) {
			res = append(res, c)
		}
	}
	return res
}

// Merge combines the existing and the newly fetched rows into a new dataset
// keyed by timestamp. A timestamp present in both resolves to the fetched row,
// duplicates within either side resolve to the last occurrence, and the result
// is sorted by timestamp. The columns are the union of both sides, existing
// columns first. The second return value is the number of existing timestamps
// overwritten by the fetched rows.
//
// Either argument may be nil.
func Merge(existing, fetched *Dataset) (*Dataset, int) {
	var columns []string
	if existing != nil {
		columns = existing.Columns
	}
	if fetched != nil {
		columns = unionColumns(columns, fetched.Columns)
	}
	res := NewDataset(columns...)
	index := make(map[int64]int) // timestamp -> row index in res
	fromExisting := make(map[int64]bool)
	replaced := 0

	add := func(d *Dataset, isExisting bool) {
		if d == nil {
			return
		}
		for _, r := range d.Rows {
			t := r.Time.UTC()
			k := t.UnixNano()
			row := Row{Time: t, Values: d.project(r, columns)}
			i, ok := index[k]
			if !ok {
				index[k] = len(res.Rows)
				res.Rows = append(res.Rows, row)
				fromExisting[k] = isExisting
				continue
			}
			if !isExisting && fromExisting[k] {
				replaced++
				fromExisting[k] = false
			}
			res.Rows[i] = row
		}
	}
	add(existing, true)
	add(fetched, false)
	res.Sort()
	return res, replaced
}

// MergeData merges the data type maps of a ticker. A data type present on both
// sides is merged by Merge; a data type present on one side only is taken
// as is. The second value is the total number of overwritten rows.
func MergeData(existing, fetched map[string]*Dataset) (map[string]*Dataset, int) {
	res := make(map[string]*Dataset)
	replaced := 0
	for t, ds := range existing {
		res[t] = ds
	}
	for t, ds := range fetched {
		old, ok := res[t]
		if !ok {
			res[t] = ds
			continue
		}
		merged, n := Merge(old, ds)
		res[t] = merged
		replaced += n
	}
	return res, replaced
}
