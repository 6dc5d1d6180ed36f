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

// Package updater keeps the local store current by fetching only the data
// newer than what is already stored and merging it in.
package updater

import (
	"context"
	"strings"
	"time"

	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/marketstore/db"
	"github.com/stockparfait/marketstore/history"
	"github.com/stockparfait/marketstore/yahoo"
)

// Fetcher downloads data for tickers in the date range [start, end] at the
// given interval. The result maps ticker -> data type -> dataset. Tickers which
// could not be fetched are absent from the result. A zero start requests the
// full history.
type Fetcher interface {
	Fetch(ctx context.Context, tickers []string, start, end time.Time, interval string) (map[string]map[string]*db.Dataset, error)
}

var _ Fetcher = &yahoo.Client{}

// Updater of the data store.
type Updater struct {
	DB       *db.DB
	Fetcher  Fetcher
	Interval string
	Now      func() time.Time
	Recorder history.Recorder
}

// NewUpdater with the current time and no run history.
func NewUpdater(d *db.DB, f Fetcher, interval string) *Updater {
	return &Updater{
		DB:       d,
		Fetcher:  f,
		Interval: interval,
		Now:      time.Now,
		Recorder: history.Noop{},
	}
}

func hasRows(data map[string]*db.Dataset) bool {
	for _, d := range data {
		if !d.Empty() {
			return true
		}
	}
	return false
}

// fetchOne downloads data for a single ticker; nil if nothing was fetched.
func (u *Updater) fetchOne(ctx context.Context, ticker string, start, end time.Time) map[string]*db.Dataset {
	res, err := u.Fetcher.Fetch(ctx, []string{ticker}, start, end, u.Interval)
	if err != nil {
		logging.Warningf(ctx, "failed to fetch %s: %s", ticker, err.Error())
		return nil
	}
	data := res[ticker]
	if !hasRows(data) {
		logging.Warningf(ctx, "no new data fetched for %s", ticker)
		return nil
	}
	return data
}

// MergeTicker merges data into what is stored for the ticker and saves the
// result. Where timestamps coincide, the new data wins.
func (u *Updater) MergeTicker(ctx context.Context, ticker string, data map[string]*db.Dataset) bool {
	return u.mergeAndSave(ctx, ticker, u.DB.Load(ctx, ticker), data)
}

func (u *Updater) mergeAndSave(ctx context.Context, ticker string, existing, data map[string]*db.Dataset) bool {
	merged, replaced := db.MergeData(existing, data)
	logging.Infof(ctx, "%s: %d stored rows replaced by new data", ticker, replaced)
	return u.DB.SaveTicker(ctx, ticker, merged)
}

// UpdateTicker fetches the data newer than the latest stored price bar, up to
// end inclusive, and merges it into the store. A zero end means now. Returns
// true if the ticker is up to date, either already or after a successful
// save.
func (u *Updater) UpdateTicker(ctx context.Context, ticker string, end time.Time) bool {
	now := u.Now()
	if end.IsZero() {
		end = now
	}
	existing := u.DB.Load(ctx, ticker)
	if len(existing) == 0 {
		logging.Warningf(ctx, "no stored data for %s, fetch it first", ticker)
		return false
	}
	latest, ok := existing[db.PrimaryDataType].Latest()
	if !ok {
		logging.Warningf(ctx, "%s has no %s data to update from", ticker, db.PrimaryDataType)
		return false
	}
	start := latest.AddDate(0, 0, 1)
	if start.After(now) {
		logging.Infof(ctx, "%s is up to date as of %s", ticker, db.FormatTime(latest))
		return true
	}
	logging.Debugf(ctx, "updating %s from %s to %s", ticker,
		db.FormatTime(start), db.FormatTime(end))
	data := u.fetchOne(ctx, ticker, start, end)
	if data == nil {
		return false
	}
	return u.mergeAndSave(ctx, ticker, existing, data)
}

// batch applies f to each ticker in order and reports the outcome. Once ctx is
// cancelled, the remaining tickers fail without being attempted.
func (u *Updater) batch(ctx context.Context, kind string, tickers []string, f func(string) bool) map[string]bool {
	run := history.NewRun(kind, u.Now())
	type acc struct {
		ok     int
		failed []string
	}
	res := iterator.Reduce[string, acc](iterator.FromSlice(tickers), acc{},
		func(ticker string, a acc) acc {
			ok := false
			if err := ctx.Err(); err != nil {
				logging.Warningf(ctx, "%s: skipping %s: %s", kind, ticker, err.Error())
			} else {
				ok = f(ticker)
			}
			run.Results[ticker] = ok
			if ok {
				a.ok++
			} else {
				a.failed = append(a.failed, ticker)
			}
			return a
		})
	run.Finished = u.Now()
	logging.Infof(ctx, "%s: updated %d/%d tickers", kind, res.ok, len(tickers))
	if len(res.failed) > 0 {
		logging.Warningf(ctx, "%s: failed tickers: %s", kind, strings.Join(res.failed, ", "))
	}
	if u.Recorder != nil {
		// A cancelled batch is still recorded.
		if err := u.Recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
			logging.Errorf(ctx, "failed to record the %s run: %s", kind, err.Error())
		}
	}
	return run.Results
}

// UpdateTickers updates each ticker in turn. A failure of one ticker does not
// stop the rest.
func (u *Updater) UpdateTickers(ctx context.Context, tickers []string, end time.Time) map[string]bool {
	return u.batch(ctx, history.KindUpdate, tickers, func(ticker string) bool {
		return u.UpdateTicker(ctx, ticker, end)
	})
}

// FetchTickers downloads the given period of history for each ticker. Unless
// forced, tickers which already have stored price bars are updated
// incrementally instead. When forced, each downloaded data type replaces the
// stored one, and the stored data types absent from the download are kept.
func (u *Updater) FetchTickers(ctx context.Context, tickers []string, period string, force bool) map[string]bool {
	start, err := yahoo.PeriodStart(period, u.Now())
	if err != nil {
		logging.Errorf(ctx, "cannot fetch: %s", err.Error())
		res := make(map[string]bool)
		for _, t := range tickers {
			res[t] = false
		}
		return res
	}
	return u.batch(ctx, history.KindFetch, tickers, func(ticker string) bool {
		if !force {
			if _, ok := u.DB.LatestTimestamp(ctx, ticker, db.PrimaryDataType); ok {
				logging.Infof(ctx, "%s is already stored, updating instead", ticker)
				return u.UpdateTicker(ctx, ticker, time.Time{})
			}
		}
		data := u.fetchOne(ctx, ticker, start, u.Now())
		if data == nil {
			return false
		}
		return u.DB.SaveTicker(ctx, ticker, data)
	})
}
