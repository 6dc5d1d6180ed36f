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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"golang.org/x/exp/slices"
)

// FileExt is the extension of the dataset files.
const FileExt = ".parquet"

// DB is the storage accessor for the per-ticker datasets. The layout is
// <dir>/<ticker>/<data type>.parquet.
//
// The methods of DB do not return errors; failures are logged, and reported
// as false or empty results.
type DB struct {
	Dir string
}

// NewDB creates a storage accessor rooted at dir.
func NewDB(dir string) *DB {
	return &DB{Dir: dir}
}

func (db *DB) tickerDir(ticker string) string {
	return filepath.Join(db.Dir, ticker)
}

// FileName of the dataset for the ticker and the data type.
func (db *DB) FileName(ticker, dataType string) string {
	return filepath.Join(db.tickerDir(ticker), dataType+FileExt)
}

// Save writes a single dataset, creating the ticker directory as needed. An
// empty dataset is not written, and false is returned.
func (db *DB) Save(ctx context.Context, ticker, dataType string, d *Dataset) bool {
	fileName := db.FileName(ticker, dataType)
	if d.Empty() {
		logging.Warningf(ctx, "%s: not saving empty %s data to '%s'",
			ticker, dataType, fileName)
		return false
	}
	if err := os.MkdirAll(db.tickerDir(ticker), 0777); err != nil {
		logging.Errorf(ctx, "%s: failed to create directory for %s data: %s",
			ticker, dataType, err.Error())
		return false
	}
	if err := writeParquet(fileName, d); err != nil {
		logging.Errorf(ctx, "%s: failed to save %s data: %s",
			ticker, dataType, err.Error())
		return false
	}
	logging.Debugf(ctx, "%s: saved %d rows of %s data to '%s'",
		ticker, d.Len(), dataType, fileName)
	return true
}

// SaveTicker writes all non-empty datasets of the ticker. It returns true if
// at least one dataset was written and all the writes succeeded.
func (db *DB) SaveTicker(ctx context.Context, ticker string, data map[string]*Dataset) bool {
	saved := 0
	ok := true
	for _, t := range sortedKeys(data) {
		d := data[t]
		if d.Empty() {
			logging.Debugf(ctx, "%s: skipping empty %s data", ticker, t)
			continue
		}
		if !db.Save(ctx, ticker, t, d) {
			ok = false
			continue
		}
		saved++
	}
	if saved == 0 {
		logging.Warningf(ctx, "%s: no data to save", ticker)
		return false
	}
	return ok
}

// Load reads the datasets of the ticker. When no data types are given, all
// the stored data types are loaded. A missing ticker directory yields an empty
// map, and a missing or unreadable file is skipped.
func (db *DB) Load(ctx context.Context, ticker string, dataTypes ...string) map[string]*Dataset {
	res := make(map[string]*Dataset)
	dir := db.tickerDir(ticker)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Warningf(ctx, "%s: no data directory '%s'", ticker, dir)
		} else {
			logging.Errorf(ctx, "%s: cannot access '%s': %s", ticker, dir, err.Error())
		}
		return res
	}
	if len(dataTypes) == 0 {
		dataTypes = db.DataTypes(ctx, ticker)
	}
	for _, t := range dataTypes {
		fileName := db.FileName(ticker, t)
		if _, err := os.Stat(fileName); err != nil {
			logging.Debugf(ctx, "%s: no %s data: %s", ticker, t, err.Error())
			continue
		}
		d, err := readParquet(fileName)
		if err != nil {
			logging.Errorf(ctx, "%s: failed to load %s data: %s", ticker, t, err.Error())
			continue
		}
		res[t] = d
	}
	return res
}

func (db *DB) boundary(ctx context.Context, ticker, dataType string, latest bool) (time.Time, bool) {
	fileName := db.FileName(ticker, dataType)
	if _, err := os.Stat(fileName); err != nil {
		logging.Debugf(ctx, "%s: no %s data: %s", ticker, dataType, err.Error())
		return time.Time{}, false
	}
	d, err := readParquet(fileName)
	if err != nil {
		if _, ok := err.(*NotTimeIndexError); ok {
			logging.Warningf(ctx, "%s: %s", ticker, err.Error())
		} else {
			logging.Errorf(ctx, "%s: failed to load %s data: %s",
				ticker, dataType, err.Error())
		}
		return time.Time{}, false
	}
	if latest {
		return d.Latest()
	}
	return d.Earliest()
}

// LatestTimestamp returns the maximum timestamp of the stored dataset, if any.
func (db *DB) LatestTimestamp(ctx context.Context, ticker, dataType string) (time.Time, bool) {
	return db.boundary(ctx, ticker, dataType, true)
}

// EarliestTimestamp returns the minimum timestamp of the stored dataset, if
// any.
func (db *DB) EarliestTimestamp(ctx context.Context, ticker, dataType string) (time.Time, bool) {
	return db.boundary(ctx, ticker, dataType, false)
}

// Tickers present in the database, sorted.
func (db *DB) Tickers(ctx context.Context) []string {
	entries, err := os.ReadDir(db.Dir)
	if err != nil {
		logging.Warningf(ctx, "cannot list tickers in '%s': %s", db.Dir, err.Error())
		return nil
	}
	var res []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			res = append(res, e.Name())
		}
	}
	slices.Sort(res)
	return res
}

// DataTypes stored for the ticker, sorted.
func (db *DB) DataTypes(ctx context.Context, ticker string) []string {
	dir := db.tickerDir(ticker)
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Debugf(ctx, "%s: cannot list data types in '%s': %s",
			ticker, dir, err.Error())
		return nil
	}
	var res []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == FileExt {
			res = append(res, strings.TrimSuffix(e.Name(), FileExt))
		}
	}
	slices.Sort(res)
	return res
}

// History loads a single dataset restricted by the constraints. It returns nil
// if the dataset cannot be loaded.
func (db *DB) History(ctx context.Context, ticker, dataType string, c *Constraints) *Dataset {
	d, ok := db.Load(ctx, ticker, dataType)[dataType]
	if !ok {
		return nil
	}
	if c == nil {
		return d
	}
	return c.Apply(d)
}

func sortedKeys(data map[string]*Dataset) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
