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

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/testutil"

	"github.com/stockparfait/marketstore/config"
	"github.com/stockparfait/marketstore/db"
	"github.com/stockparfait/marketstore/yahoo"

	. "github.com/smartystreets/goconvey/convey"
)

// Daily bars of Jan 10, 11 and 12, 2024, and a dividend on Jan 11.
const chartJSON = `{"chart": {"result": [{
  "meta": {"symbol": "AAPL", "exchangeTimezoneName": "America/New_York"},
  "timestamp": [1704897000, 1704983400, 1705069800],
  "events": {
    "dividends": {"1704983400": {"amount": 0.24, "date": 1704983400}}
  },
  "indicators": {
    "quote": [{
      "open": [184.35, 184.22, 186.06],
      "high": [186.4, 187.05, 186.74],
      "low": [183.92, 183.62, 185.19],
      "close": [186.19, 185.59, 185.92],
      "volume": [46792900, 49128400, 40444700]
    }],
    "adjclose": [{"adjclose": [185.5, 184.9, 185.2]}]
  }
}], "error": null}}`

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestApp(t *testing.T) {
	tmpdir, tmpdirErr := os.MkdirTemp("", "test_marketstore")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("parseFlags", t, func() {
		flags, err := parseFlags([]string{
			"-config", "path/to/config.toml", "-log-level", "warning",
			"update", "-tickers", "AAPL"})
		So(err, ShouldBeNil)
		So(flags.Config, ShouldEqual, "path/to/config.toml")
		So(flags.LogLevel, ShouldEqual, logging.Warning)
		So(flags.logLevelSet, ShouldBeTrue)
		So(flags.Command, ShouldEqual, "update")
		So(flags.Args, ShouldResemble, []string{"-tickers", "AAPL"})

		flags, err = parseFlags([]string{"history"})
		So(err, ShouldBeNil)
		So(flags.logLevelSet, ShouldBeFalse)
		So(len(flags.Args), ShouldEqual, 0)

		_, err = parseFlags([]string{})
		So(err, ShouldNotBeNil)
		_, err = parseFlags([]string{"download"})
		So(err, ShouldNotBeNil)
	})

	Convey("command flags", t, func() {
		_, err := parseFetchFlags([]string{"-tickers", "A", "-from-file"})
		So(err, ShouldNotBeNil)

		c := &config.Config{DataDir: "/data"}
		ff, err := parseFetchFlags([]string{"-from-file"})
		So(err, ShouldBeNil)
		So(ff.FromFile.file(c), ShouldEqual, filepath.Join("/data", "tickers.txt"))
		ff, err = parseFetchFlags([]string{"-from-file=/lists/tech.txt"})
		So(err, ShouldBeNil)
		So(ff.FromFile.file(c), ShouldEqual, "/lists/tech.txt")
		ff, err = parseFetchFlags([]string{"-tickers", "A"})
		So(err, ShouldBeNil)
		So(ff.FromFile.file(c), ShouldEqual, "")

		lf, err := parseLoadFlags([]string{"-panel", "Close", "-fill", "bfill"})
		So(err, ShouldBeNil)
		So(lf.Fill, ShouldEqual, db.FillBackward)
		_, err = parseLoadFlags([]string{"-panel", "Close", "-fill", "linear"})
		So(err, ShouldNotBeNil)
		_, err = parseLoadFlags([]string{"-panel", "Close", "-history", "AAPL"})
		So(err, ShouldNotBeNil)

		uf, err := parseUpdateFlags([]string{"-end", "2024-01-15"})
		So(err, ShouldBeNil)
		So(endTime(uf.End), ShouldResemble, day(15))

		_, err = parseLoadFlags([]string{"-summary", "-list-tickers"})
		So(err, ShouldNotBeNil)
		_, err = parseLoadFlags([]string{"-summary", "-format", "xml"})
		So(err, ShouldNotBeNil)

		_, err = parseConfigFlags([]string{"-set", "interval"})
		So(err, ShouldNotBeNil)
		_, err = parseImportFlags([]string{"-ticker", "BAD TICKER", "-file", "f.csv"})
		So(err, ShouldNotBeNil)
		_, err = parseTickersFlags([]string{})
		So(err, ShouldNotBeNil)
	})

	Convey("commands work", t, func() {
		dir, err := os.MkdirTemp(tmpdir, "case")
		So(err, ShouldBeNil)
		dataDir := filepath.Join(dir, "data")
		configPath := filepath.Join(dir, "config.toml")
		So(testutil.WriteFile(configPath, fmt.Sprintf(`
data_dir = "%s"
tickers = ["AAPL"]
fundamentals = false
log_level = "error"
history_db = "history.db"
`, dataDir)), ShouldBeNil)

		server := testutil.NewTestServer()
		defer server.Close()
		ctx := fetch.UseClient(context.Background(), server.Client())
		yahoo.URL = server.URL()

		cmd := func(name string, args ...string) (string, error) {
			var buf bytes.Buffer
			flags := &Flags{Config: configPath, Command: name, Args: args}
			err := run(ctx, flags, &buf)
			return buf.String(), err
		}

		Convey("fetch, update and load", func() {
			server.ResponseBody = []string{chartJSON, chartJSON}
			out, err := cmd("fetch", "-period", "1mo")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "AAPL   |     ok")
			So(server.RequestPath, ShouldEqual, "/v8/finance/chart/AAPL")

			out, err = cmd("update", "-end", "2024-01-15")
			So(err, ShouldBeNil)
			So(server.RequestQuery.Get("period1"), ShouldEqual, "1705017600")
			So(server.RequestQuery.Get("period2"), ShouldEqual, "1705363200")

			out, err = cmd("load", "-history", "AAPL", "-fields", "Close,Volume",
				"-format", "csv")
			So(err, ShouldBeNil)
			So("\n"+out, ShouldEqual, `
Date,Close,Volume
2024-01-10,186.19,46792900
2024-01-11,185.59,49128400
2024-01-12,185.92,40444700
`)
			out, err = cmd("load", "-history", "AAPL", "-fields", "Close",
				"-start", "2024-01-11", "-rows", "1", "-format", "json")
			So(err, ShouldBeNil)
			So("\n"+out, ShouldEqual, `
[
  {
    "Close": 185.92,
    "Date": "2024-01-12"
  }
]
`)
			out, err = cmd("load", "-panel", "Close", "-start", "2024-01-11", "-format", "csv")
			So(err, ShouldBeNil)
			So("\n"+out, ShouldEqual, `
Date,AAPL
2024-01-11,185.59
2024-01-12,185.92
`)
			_, err = cmd("load", "-panel", "Nope")
			So(err, ShouldNotBeNil)

			out, err = cmd("load", "-ticker-info", "AAPL", "-format", "csv")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "dividends,1,2024-01-11,2024-01-11,Dividends\n")
			So(out, ShouldContainSubstring, "all,,2024-01-10,2024-01-12,\n")

			out, err = cmd("load", "-list-tickers", "-format", "csv")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "Ticker\nAAPL\n")

			out, err = cmd("history", "-format", "csv")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, ",update,")
			So(out, ShouldContainSubstring, ",fetch,")
		})

		Convey("failed fetch is an error", func() {
			server.ResponseBody = []string{`{"chart": {"result": [], "error": null}}`}
			out, err := cmd("fetch", "-tickers", "nope")
			So(err, ShouldNotBeNil)
			So(out, ShouldContainSubstring, "NOPE   | failed")
		})

		Convey("invalid tickers in a file are skipped", func() {
			listPath := filepath.Join(dir, "list.txt")
			So(testutil.WriteFile(listPath, "AAPL\nBRK/B\n"), ShouldBeNil)
			server.ResponseBody = []string{chartJSON}
			out, err := cmd("fetch", "-from-file="+listPath)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "AAPL   |     ok")
			So(out, ShouldNotContainSubstring, "BRK")
		})

		Convey("update of a ticker never fetched fails", func() {
			_, err := cmd("update")
			So(err, ShouldNotBeNil)
		})

		Convey("import and summaries", func() {
			csvPath := filepath.Join(dir, "ibm.csv")
			So(testutil.WriteFile(csvPath, "Date,Close,Note\n2024-01-02,10,a\n2024-01-03,11,b\n"), ShouldBeNil)
			_, err := cmd("import", "-ticker", "ibm", "-file", csvPath, "-columns", "Close")
			So(err, ShouldBeNil)

			out, err := cmd("load", "-ticker-info", "IBM", "-format", "csv")
			So(err, ShouldBeNil)
			So("\n"+out, ShouldEqual, `
Data Type,Rows,Start,End,Columns
ohlcv,2,2024-01-02,2024-01-03,Close
`)
			out, err = cmd("load", "-summary", "-format", "csv")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring,
				"IBM,2024-01-02,2024-01-03,2,TRUE,FALSE,FALSE,FALSE,FALSE,FALSE,FALSE,11,,,")

			out, err = cmd("load", "-ticker-info", "NONE")
			So(err, ShouldNotBeNil)
		})

		Convey("output to a file", func() {
			csvPath := filepath.Join(dir, "ibm.csv")
			So(testutil.WriteFile(csvPath, "Date,Close\n2024-01-02,10\n"), ShouldBeNil)
			_, err := cmd("import", "-ticker", "IBM", "-file", csvPath)
			So(err, ShouldBeNil)
			outPath := filepath.Join(dir, "out.csv")
			_, err = cmd("load", "-history", "IBM", "-format", "csv", "-output", outPath)
			So(err, ShouldBeNil)
			content, err := os.ReadFile(outPath)
			So(err, ShouldBeNil)
			So(string(content), ShouldEqual, "Date,Close\n2024-01-02,10\n")
		})

		Convey("config", func() {
			out, err := cmd("config", "-show")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "history_db")

			_, err = cmd("config", "-set", "interval", "1wk")
			So(err, ShouldBeNil)
			c, err := config.LoadFile(configPath)
			So(err, ShouldBeNil)
			So(c.Interval, ShouldEqual, "1wk")
			So(c.DataDir, ShouldEqual, dataDir)

			_, err = cmd("config", "-set", "interval", "2d")
			So(err, ShouldNotBeNil)
			_, err = cmd("config", "-set", "color", "blue")
			So(err, ShouldNotBeNil)
		})

		Convey("tickers", func() {
			_, err := cmd("tickers", "-load")
			So(err, ShouldNotBeNil)

			_, err = cmd("tickers", "-save", "msft,aapl")
			So(err, ShouldBeNil)
			out, err := cmd("tickers", "-load")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "AAPL\nMSFT\n")

			_, err = cmd("tickers", "-update-config")
			So(err, ShouldBeNil)
			c, err := config.LoadFile(configPath)
			So(err, ShouldBeNil)
			So(c.Tickers, ShouldResemble, []string{"AAPL", "MSFT"})
		})

		Convey("history disabled", func() {
			So(testutil.WriteFile(configPath, fmt.Sprintf("data_dir = %q\n", dataDir)), ShouldBeNil)
			_, err := cmd("history")
			So(err, ShouldNotBeNil)
		})
	})
}
