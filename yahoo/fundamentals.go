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
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/marketstore/db"
)

const (
	annualPrefix  = "annual"
	netIncomeItem = "NetIncome"
)

// Annual line items requested for each statement data type. Dataset columns
// are the item names without the "annual" prefix.
var statementItems = map[string][]string{
	db.Financials: {
		"TotalRevenue", "CostOfRevenue", "GrossProfit", "OperatingIncome",
		"EBITDA", netIncomeItem, "BasicEPS", "DilutedEPS",
	},
	db.BalanceSheet: {
		"TotalAssets", "TotalLiabilitiesNetMinorityInterest",
		"StockholdersEquity", "CashAndCashEquivalents", "TotalDebt",
		"OrdinarySharesNumber",
	},
	db.Cashflow: {
		"OperatingCashFlow", "CapitalExpenditure", "FreeCashFlow",
		"CashDividendsPaid", "RepurchaseOfCapitalStock",
	},
}

// statementOrder fixes the order of statement requests and datasets.
var statementOrder = []string{db.Financials, db.BalanceSheet, db.Cashflow}

type reportedValue struct {
	AsOfDate      string `json:"asOfDate"`
	PeriodType    string `json:"periodType"`
	ReportedValue struct {
		Raw float64 `json:"raw"`
	} `json:"reportedValue"`
}

type timeseriesMeta struct {
	Symbol []string `json:"symbol"`
	Type   []string `json:"type"`
}

type timeseriesResponse struct {
	Timeseries struct {
		// Each result holds "meta" and a list of values under the item type.
		Result []map[string]json.RawMessage `json:"result"`
		Error  *apiError                    `json:"error"`
	} `json:"timeseries"`
}

func statementTypes() []string {
	var types []string
	for _, dt := range statementOrder {
		for _, item := range statementItems[dt] {
			types = append(types, annualPrefix+item)
		}
	}
	return types
}

// FetchFundamentals downloads annual statements reported up to end and
// returns the db.Financials, db.BalanceSheet, db.Cashflow and db.Earnings
// datasets indexed by the statement date. Statements with no reported values
// are omitted.
func (c *Client) FetchFundamentals(ctx context.Context, ticker string, end time.Time) (map[string]*db.Dataset, error) {
	var resp timeseriesResponse
	query := make(url.Values)
	query.Set("symbol", ticker)
	query.Set("type", strings.Join(statementTypes(), ","))
	query.Set("period1", strconv.FormatInt(c.FundamentalsSince.Unix(), 10))
	query.Set("period2", strconv.FormatInt(endUnix(end), 10))
	path := "/ws/fundamentals-timeseries/v1/finance/timeseries/" + url.PathEscape(ticker)
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, err
	}
	if e := resp.Timeseries.Error; e != nil {
		return nil, errors.Reason("%s: %s", e.Code, e.Description)
	}
	return parseTimeseries(resp.Timeseries.Result)
}

func parseTimeseries(results []map[string]json.RawMessage) (map[string]*db.Dataset, error) {
	// item -> date -> value
	values := make(map[string]map[db.Date]float64)
	for _, r := range results {
		var meta timeseriesMeta
		if err := json.Unmarshal(r["meta"], &meta); err != nil {
			return nil, errors.Annotate(err, "failed to parse timeseries meta")
		}
		if len(meta.Type) == 0 {
			continue
		}
		key := meta.Type[0]
		raw, ok := r[key]
		if !ok {
			continue
		}
		var vs []*reportedValue
		if err := json.Unmarshal(raw, &vs); err != nil {
			return nil, errors.Annotate(err, "failed to parse values of %s", key)
		}
		item := strings.TrimPrefix(key, annualPrefix)
		for _, v := range vs {
			if v == nil {
				continue
			}
			d, err := db.NewDateFromString(v.AsOfDate)
			if err != nil {
				return nil, errors.Annotate(err, "bad asOfDate in %s", key)
			}
			if values[item] == nil {
				values[item] = make(map[db.Date]float64)
			}
			values[item][d] = v.ReportedValue.Raw
		}
	}
	res := make(map[string]*db.Dataset)
	for _, dt := range statementOrder {
		if d := statementDataset(statementItems[dt], values); !d.Empty() {
			res[dt] = d
		}
	}
	if d := earningsDataset(values); !d.Empty() {
		res[db.Earnings] = d
	}
	return res, nil
}

// earningsDataset is the annual net income alone.
func earningsDataset(values map[string]map[db.Date]float64) *db.Dataset {
	ds := db.NewDataset(db.NetIncomeColumn)
	for d, v := range values[netIncomeItem] {
		ds.AddRow(d.ToTime(), v)
	}
	ds.Sort()
	return ds
}

// statementDataset builds one row per date on which any of the items has a
// value; missing items are NaN.
func statementDataset(items []string, values map[string]map[db.Date]float64) *db.Dataset {
	dates := make(map[db.Date]struct{})
	for _, item := range items {
		for d := range values[item] {
			dates[d] = struct{}{}
		}
	}
	ds := db.NewDataset(items...)
	for d := range dates {
		row := make([]float64, len(items))
		for i, item := range items {
			v, ok := values[item][d]
			if !ok {
				v = math.NaN()
			}
			row[i] = v
		}
		ds.AddRow(d.ToTime(), row...)
	}
	ds.Sort()
	return ds
}
