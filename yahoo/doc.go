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

// Package yahoo fetches market data from the public Yahoo Finance endpoints.
//
// Price bars, dividends and splits come from the v8 chart API; annual
// financial statements come from the fundamentals timeseries API. Results are
// returned as db.Dataset values keyed by data type (db.OHLCV, db.Dividends,
// etc.), ready to be merged into the local store.
//
// The HTTP client is taken from the context using the fetch package, so tests
// can substitute testutil.NewTestServer().
package yahoo
