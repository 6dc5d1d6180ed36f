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

package yahoo

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/marketstore/db"
)

// apiError is the error object embedded in Yahoo responses.
type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartMeta struct {
	Symbol               string `json:"symbol"`
	Currency             string `json:"currency"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	GMTOffset            int64  `json:"gmtoffset"`
	DataGranularity      string `json:"dataGranularity"`
}

type dividendEvent struct {
	Amount float64 `json:"amount"`
	Date   int64   `json:"date"`
}

type splitEvent struct {
	Date        int64   `json:"date"`
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
	SplitRatio  string  `json:"splitRatio"`
}

// Nulls are common in the indicator arrays, hence pointers.
type quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

type chartResult struct {
	Meta      chartMeta `json:"meta"`
	Timestamp []int64   `json:"timestamp"`
	Events    struct {
		Dividends map[string]dividendEvent `json:"dividends"`
		Splits    map[string]splitEvent    `json:"splits"`
	} `json:"events"`
	Indicators struct {
		Quote    []quote `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

// chartQuery for bars from start to end inclusive. The API filters on the
// bar's own timestamp, and exchanges east of UTC open before midnight UTC of
// their trading date, so daily requests begin a day earlier. The extra bar is
// a stored one which the merge replaces.
func chartQuery(start, end time.Time, interval string) url.Values {
	query := make(url.Values)
	query.Set("interval", interval)
	query.Set("events", "div,split")
	query.Set("includeAdjustedClose", "true")
	if start.IsZero() {
		query.Set("range", "max")
		return query
	}
	if Daily(interval) {
		start = start.AddDate(0, 0, -1)
	}
	query.Set("period1", strconv.FormatInt(start.Unix(), 10))
	query.Set("period2", strconv.FormatInt(endUnix(end), 10))
	return query
}

// Chart downloads price bars and corporate actions for the ticker and
// converts them into db.OHLCV, db.Dividends and db.Splits datasets. The last
// two are present only when there were events in the range.
func (c *Client) Chart(ctx context.Context, ticker string, start, end time.Time, interval string) (map[string]*db.Dataset, error) {
	var resp chartResponse
	path := "/v8/finance/chart/" + url.PathEscape(ticker)
	if err := c.get(ctx, path, chartQuery(start, end, interval), &resp); err != nil {
		return nil, err
	}
	if e := resp.Chart.Error; e != nil {
		return nil, errors.Reason("%s: %s", e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, errors.Reason("no chart data for %s", ticker)
	}
	return parseChart(&resp.Chart.Result[0], interval)
}

// location of the exchange; falls back to a fixed GMT offset.
func (m *chartMeta) location() *time.Location {
	if m.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(m.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", int(m.GMTOffset))
}

// barTime converts a Unix timestamp of a bar. Daily bars become midnight UTC
// of the exchange-local trading date.
func barTime(ts int64, loc *time.Location, daily bool) time.Time {
	t := time.Unix(ts, 0).In(loc)
	if !daily {
		return t.UTC()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func value(xs []*float64, i int) float64 {
	if i >= len(xs) || xs[i] == nil {
		return math.NaN()
	}
	return *xs[i]
}

func splitRatio(s splitEvent) float64 {
	if s.Denominator == 0 {
		return math.NaN()
	}
	return s.Numerator / s.Denominator
}

func parseChart(r *chartResult, interval string) (map[string]*db.Dataset, error) {
	if len(r.Indicators.Quote) == 0 && len(r.Timestamp) > 0 {
		return nil, errors.Reason("chart has timestamps but no quotes")
	}
	loc := r.Meta.location()
	daily := Daily(interval)

	divs := db.NewDataset(db.DividendsColumn)
	divByTime := make(map[int64]float64)
	for _, e := range r.Events.Dividends {
		if e.Amount <= 0 {
			continue
		}
		t := barTime(e.Date, loc, daily)
		divs.AddRow(t, e.Amount)
		divByTime[t.UnixNano()] += e.Amount
	}
	splits := db.NewDataset(db.SplitsColumn)
	splitByTime := make(map[int64]float64)
	for _, e := range r.Events.Splits {
		ratio := splitRatio(e)
		if math.IsNaN(ratio) || ratio <= 0 {
			continue
		}
		t := barTime(e.Date, loc, daily)
		splits.AddRow(t, ratio)
		splitByTime[t.UnixNano()] = ratio
	}

	ohlcv := db.NewDataset(db.OHLCVColumns()...)
	var q quote
	if len(r.Indicators.Quote) > 0 {
		q = r.Indicators.Quote[0]
	}
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}
	for i, ts := range r.Timestamp {
		cl := value(q.Close, i)
		if math.IsNaN(cl) {
			continue
		}
		t := barTime(ts, loc, daily)
		a := value(adj, i)
		if math.IsNaN(a) {
			a = cl
		}
		key := t.UnixNano()
		ohlcv.AddRow(t, value(q.Open, i), value(q.High, i), value(q.Low, i),
			cl, a, value(q.Volume, i), divByTime[key], splitByTime[key])
	}
	res := make(map[string]*db.Dataset)
	for dt, d := range map[string]*db.Dataset{
		db.OHLCV: ohlcv, db.Dividends: divs, db.Splits: splits,
	} {
		if d.Empty() {
			continue
		}
		d.Sort()
		res[dt] = d
	}
	return res, nil
}
