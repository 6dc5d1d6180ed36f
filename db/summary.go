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
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is used to annualize daily volatility.
const TradingDaysPerYear = 252

// KnownDataTypes lists the data types reported in summaries.
func KnownDataTypes() []string {
	return []string{OHLCV, Dividends, Splits, Financials, BalanceSheet, Cashflow, Earnings}
}

// Summary of the stored data of a ticker.
type Summary struct {
	Ticker     string
	Start      Date // the earliest price bar
	End        Date // the latest price bar
	Rows       int  // number of price bars
	Has        map[string]bool
	LastClose  float64
	MeanReturn float64 // mean of daily log-returns of Close
	StdReturn  float64 // standard deviation of daily log-returns
	Volatility float64 // StdReturn annualized
}

// logReturns of consecutive positive values; missing values are skipped.
func logReturns(prices []float64) []float64 {
	var res []float64
	prev := math.NaN()
	for _, p := range prices {
		if math.IsNaN(p) || p <= 0 {
			continue
		}
		if !math.IsNaN(prev) {
			res = append(res, math.Log(p/prev))
		}
		prev = p
	}
	return res
}

// Summarize the loaded data of a ticker. The price statistics come from the
// primary dataset, which is assumed to be sorted.
func Summarize(ticker string, data map[string]*Dataset) Summary {
	s := Summary{
		Ticker:     ticker,
		Has:        make(map[string]bool),
		LastClose:  math.NaN(),
		MeanReturn: math.NaN(),
		StdReturn:  math.NaN(),
		Volatility: math.NaN(),
	}
	for t, d := range data {
		s.Has[t] = !d.Empty()
	}
	prices, ok := data[PrimaryDataType]
	if !ok || prices.Empty() {
		return s
	}
	s.Rows = prices.Len()
	if t, ok := prices.Earliest(); ok {
		s.Start = NewDateFromTime(t)
	}
	if t, ok := prices.Latest(); ok {
		s.End = NewDateFromTime(t)
	}
	closes := prices.Column(CloseColumn)
	for i := len(closes) - 1; i >= 0; i-- {
		if !math.IsNaN(closes[i]) {
			s.LastClose = closes[i]
			break
		}
	}
	if r := logReturns(closes); len(r) >= 2 {
		s.MeanReturn, s.StdReturn = stat.MeanStdDev(r, nil)
		s.Volatility = s.StdReturn * math.Sqrt(TradingDaysPerYear)
	}
	return s
}

// Summary loads all the data of a ticker and summarizes it.
func (db *DB) Summary(ctx context.Context, ticker string) Summary {
	return Summarize(ticker, db.Load(ctx, ticker))
}

// SummaryHeader is the header for the tabular output of Summary rows.
func SummaryHeader() []string {
	h := []string{"Ticker", "Start", "End", "Trading Days"}
	for _, t := range KnownDataTypes() {
		h = append(h, "has_"+t)
	}
	return append(h, "Last Close", "Mean Return", "Std Return", "Volatility")
}

func bool2str(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// CSV implements table.Row.
func (s Summary) CSV() []string {
	row := []string{s.Ticker, s.Start.String(), s.End.String(), fmt.Sprintf("%d", s.Rows)}
	for _, t := range KnownDataTypes() {
		row = append(row, bool2str(s.Has[t]))
	}
	return append(row, FormatFloat(s.LastClose), FormatFloat(s.MeanReturn),
		FormatFloat(s.StdReturn), FormatFloat(s.Volatility))
}
