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
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// IndexColumn is the name of the timestamp column in the stored files.
const IndexColumn = "Date"

// NotTimeIndexError is returned when a stored table has no timestamp index
// column.
type NotTimeIndexError struct {
	FileName string
	Reason   string
}

var _ error = &NotTimeIndexError{}

func (e *NotTimeIndexError) Error() string {
	return fmt.Sprintf("'%s' is not indexed by time: %s", e.FileName, e.Reason)
}

// parquetSchema is the CSV writer metadata for the dataset's columns.
func parquetSchema(columns []string) ([]string, error) {
	md := []string{fmt.Sprintf("name=%s, type=INT64, logicaltype=TIMESTAMP, "+
		"logicaltype.isadjustedtoutc=true, logicaltype.unit=NANOS", IndexColumn)}
	for _, c := range columns {
		if c == IndexColumn {
			return nil, errors.Reason("column name '%s' is reserved for the index", c)
		}
		if c == "" || strings.ContainsAny(c, ",\t") {
			return nil, errors.Reason("invalid column name: '%s'", c)
		}
		md = append(md, fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", c))
	}
	return md, nil
}

func writeParquet(fileName string, d *Dataset) (err error) {
	md, err := parquetSchema(d.Columns)
	if err != nil {
		return errors.Annotate(err, "invalid dataset schema for '%s'", fileName)
	}
	f, err := local.NewLocalFileWriter(fileName)
	if err != nil {
		return errors.Annotate(err, "failed to open file for writing: '%s'", fileName)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Annotate(cerr, "failed to close '%s'", fileName)
		}
	}()
	pw, err := writer.NewCSVWriter(md, f, 1)
	if err != nil {
		return errors.Annotate(err, "failed to create parquet writer for '%s'", fileName)
	}
	for _, r := range d.Rows {
		rec := make([]interface{}, len(d.Columns)+1)
		rec[0] = r.Time.UnixNano()
		for i, v := range r.Values {
			if !math.IsNaN(v) {
				rec[i+1] = v
			}
		}
		if err = pw.Write(rec); err != nil {
			return errors.Annotate(err, "failed to write a row to '%s'", fileName)
		}
	}
	if err = pw.WriteStop(); err != nil {
		return errors.Annotate(err, "failed to finalize '%s'", fileName)
	}
	return nil
}

// timeUnit returns the duration of one tick of a timestamp column, or zero if
// the column is not a timestamp.
func timeUnit(el *parquet.SchemaElement) time.Duration {
	if el.GetType() != parquet.Type_INT64 {
		return 0
	}
	if lt := el.GetLogicalType(); lt != nil && lt.IsSetTIMESTAMP() {
		u := lt.TIMESTAMP.GetUnit()
		switch {
		case u == nil:
			return 0
		case u.IsSetMILLIS():
			return time.Millisecond
		case u.IsSetMICROS():
			return time.Microsecond
		case u.IsSetNANOS():
			return time.Nanosecond
		}
		return 0
	}
	if el.IsSetConvertedType() {
		switch el.GetConvertedType() {
		case parquet.ConvertedType_TIMESTAMP_MILLIS:
			return time.Millisecond
		case parquet.ConvertedType_TIMESTAMP_MICROS:
			return time.Microsecond
		}
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// readParquet reads a file written by writeParquet, or any flat file with a
// timestamp "Date" column and numeric value columns.
func readParquet(fileName string) (d *Dataset, err error) {
	// The parquet reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = errors.Reason("failed to decode '%s': %v", fileName, r)
		}
	}()
	f, err := local.NewLocalFileReader(fileName)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open file for reading: '%s'", fileName)
	}
	defer f.Close()
	pr, err := reader.NewParquetColumnReader(f, 1)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read parquet footer of '%s'", fileName)
	}
	defer pr.ReadStop()

	// Infos[0] and Footer.Schema[0] are the root; the leaves follow in order.
	infos := pr.SchemaHandler.Infos
	elements := pr.Footer.GetSchema()
	indexCol := -1
	var unit time.Duration
	var columns []string
	var valueCols []int
	for i := 1; i < len(infos) && i < len(elements); i++ {
		name := infos[i].ExName
		if name == IndexColumn {
			indexCol = i - 1
			unit = timeUnit(elements[i])
			continue
		}
		columns = append(columns, name)
		valueCols = append(valueCols, i-1)
	}
	if indexCol < 0 {
		return nil, &NotTimeIndexError{FileName: fileName, Reason: "no index column"}
	}
	if unit == 0 {
		return nil, &NotTimeIndexError{
			FileName: fileName,
			Reason:   fmt.Sprintf("column %s is not a timestamp", IndexColumn),
		}
	}
	n := pr.GetNumRows()
	d = NewDataset(columns...)
	if n == 0 {
		return d, nil
	}
	times, _, _, err := pr.ReadColumnByIndex(int64(indexCol), n)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read the index of '%s'", fileName)
	}
	if int64(len(times)) != n {
		return nil, errors.Reason("index of '%s' has %d values, expected %d",
			fileName, len(times), n)
	}
	d.Rows = make([]Row, n)
	for i, v := range times {
		ts, ok := v.(int64)
		if !ok {
			return nil, errors.Reason("null or non-integer timestamp in row %d of '%s'",
				i, fileName)
		}
		d.Rows[i] = Row{
			Time:   time.Unix(0, ts*int64(unit)).UTC(),
			Values: make([]float64, len(columns)),
		}
	}
	for j, col := range valueCols {
		values, _, _, err := pr.ReadColumnByIndex(int64(col), n)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read column '%s' of '%s'",
				columns[j], fileName)
		}
		if int64(len(values)) != n {
			return nil, errors.Reason("column '%s' of '%s' has %d values, expected %d",
				columns[j], fileName, len(values), n)
		}
		for i, v := range values {
			x, ok := toFloat(v)
			if !ok {
				return nil, errors.Reason("column '%s' of '%s' is not numeric",
					columns[j], fileName)
			}
			d.Rows[i].Values[j] = x
		}
	}
	return d, nil
}
