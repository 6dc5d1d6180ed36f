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
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange time zones

	"golang.org/x/exp/slices"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketstore/db"
)

// URL is the base URL of the Yahoo Finance API. It may be overwritten in tests
// before creating a new client.
var URL = "https://query2.finance.yahoo.com"

// UserAgent is sent with every request made through NewHTTPClient. Yahoo
// rejects requests without a browser-like agent.
var UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Intervals supported by the chart API.
var Intervals = []string{
	"1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h",
	"1d", "5d", "1wk", "1mo", "3mo",
}

// Periods accepted for an initial download.
var Periods = []string{
	"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max",
}

// ValidInterval checks that the chart API knows the interval.
func ValidInterval(interval string) bool {
	return slices.Contains(Intervals, interval)
}

// ValidPeriod checks that the period is one of Periods.
func ValidPeriod(period string) bool {
	return slices.Contains(Periods, period)
}

// Daily intervals produce bars indexed by trading date rather than by time.
func Daily(interval string) bool {
	switch interval {
	case "1d", "5d", "1wk", "1mo", "3mo":
		return true
	}
	return false
}

// PeriodStart converts a period string into the start date of a download
// ending at now. "max" yields the zero time, meaning the full history.
func PeriodStart(period string, now time.Time) (time.Time, error) {
	if !ValidPeriod(period) {
		return time.Time{}, errors.Reason("unknown period: '%s'", period)
	}
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case "max":
		return time.Time{}, nil
	case "ytd":
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), nil
	case "1d":
		return today.AddDate(0, 0, -1), nil
	case "5d":
		return today.AddDate(0, 0, -5), nil
	}
	unit := period[len(period)-1:]
	if strings.HasSuffix(period, "mo") {
		unit = "mo"
	}
	n, err := strconv.Atoi(strings.TrimSuffix(period, unit))
	if err != nil {
		return time.Time{}, errors.Annotate(err, "bad period: '%s'", period)
	}
	if unit == "mo" {
		return today.AddDate(0, -n, 0), nil
	}
	return today.AddDate(-n, 0, 0), nil
}

// Client for the Yahoo Finance API.
type Client struct {
	baseURL string
	// Fundamentals enables downloading annual financial statements in Fetch.
	Fundamentals bool
	// FundamentalsSince is the earliest statement date requested.
	FundamentalsSince time.Time
}

// NewClient creates a client using the current value of URL.
func NewClient() *Client {
	return &Client{
		baseURL:           URL,
		FundamentalsSince: time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent)
	return t.base.RoundTrip(req)
}

// NewHTTPClient returns an http.Client which sets UserAgent on each request.
// Install it with fetch.UseClient.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: &userAgentTransport{base: http.DefaultTransport}}
}

// Fetch downloads data for each ticker in the date range [start, end] at the
// given interval. A zero start requests the full history, and a zero end means
// today. A ticker which fails to download is logged and omitted from the
// result. The error is returned only for invalid arguments.
func (c *Client) Fetch(ctx context.Context, tickers []string, start, end time.Time, interval string) (map[string]map[string]*db.Dataset, error) {
	if !ValidInterval(interval) {
		return nil, errors.Reason("unsupported interval: '%s'", interval)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, errors.Reason("end %s is before start %s",
			db.FormatTime(end), db.FormatTime(start))
	}
	res := make(map[string]map[string]*db.Dataset)
	for _, ticker := range tickers {
		data, err := c.FetchTicker(ctx, ticker, start, end, interval)
		if err != nil {
			logging.Warningf(ctx, "failed to fetch %s: %s", ticker, err.Error())
			continue
		}
		res[ticker] = data
	}
	return res, nil
}

// FetchTicker downloads all the configured data types for a single ticker.
// Data types with no rows are omitted.
func (c *Client) FetchTicker(ctx context.Context, ticker string, start, end time.Time, interval string) (map[string]*db.Dataset, error) {
	data, err := c.Chart(ctx, ticker, start, end, interval)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch chart for %s", ticker)
	}
	if c.Fundamentals {
		f, err := c.FetchFundamentals(ctx, ticker, end)
		if err != nil {
			// Price data is still useful without the statements.
			logging.Warningf(ctx, "failed to fetch fundamentals for %s: %s",
				ticker, err.Error())
		}
		for k, d := range f {
			data[k] = d
		}
	}
	logging.Debugf(ctx, "fetched %s: %d data types", ticker, len(data))
	return data, nil
}

// endUnix is the exclusive upper bound of a request ending on the end's date.
func endUnix(end time.Time) int64 {
	if end.IsZero() {
		end = time.Now()
	}
	return db.NewDateFromTime(end.UTC()).AddDays(1).ToTime().Unix()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	uri := c.baseURL + path
	if err := fetch.FetchJSON(ctx, uri, result, query, nil); err != nil {
		return errors.Annotate(err, "failed to fetch URL")
	}
	return nil
}
