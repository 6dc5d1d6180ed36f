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
	"math"
	"os"
	"testing"

	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSummary(t *testing.T) {
	t.Parallel()
	tmpdir, tmpdirErr := os.MkdirTemp("", "testsummary")
	defer os.RemoveAll(tmpdir)

	Convey("Test setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("Summarize works", t, func() {
		prices := NewDataset(OpenColumn, CloseColumn).
			AddRow(day(2), 1.0, 100.0).
			AddRow(day(3), 1.0, 110.0).
			AddRow(day(4), 1.0, math.NaN()).
			AddRow(day(5), 1.0, 121.0)

		Convey("with prices", func() {
			s := Summarize("A", map[string]*Dataset{
				OHLCV:     prices,
				Dividends: NewDataset(DividendsColumn).AddRow(day(3), 0.1),
				Splits:    NewDataset(SplitsColumn),
			})
			So(s.Ticker, ShouldEqual, "A")
			So(s.Start, ShouldResemble, NewDate(2024, 1, 2))
			So(s.End, ShouldResemble, NewDate(2024, 1, 5))
			So(s.Rows, ShouldEqual, 4)
			So(s.Has, ShouldResemble, map[string]bool{
				OHLCV: true, Dividends: true, Splits: false})
			So(s.LastClose, ShouldEqual, 121.0)
			// Both returns are log(1.1).
			So(testutil.Round(s.MeanReturn, 5), ShouldEqual, testutil.Round(math.Log(1.1), 5))
			So(testutil.Round(s.StdReturn, 5), ShouldEqual, 0.0)
			So(s.CSV(), ShouldResemble, []string{
				"A", "2024-01-02", "2024-01-05", "4",
				"TRUE", "TRUE", "FALSE", "FALSE", "FALSE", "FALSE", "FALSE",
				"121", FormatFloat(math.Log(1.1)), "0", "0"})
			So(len(SummaryHeader()), ShouldEqual, len(s.CSV()))
		})

		Convey("without prices", func() {
			s := Summarize("B", map[string]*Dataset{
				Financials: NewDataset("TotalRevenue").AddRow(day(1), 1e9),
			})
			So(s.Rows, ShouldEqual, 0)
			So(s.Start.IsZero(), ShouldBeTrue)
			So(math.IsNaN(s.LastClose), ShouldBeTrue)
			So(s.CSV()[11], ShouldEqual, "")
		})

		Convey("from the database", func() {
			ctx := context.Background()
			db := NewDB(tmpdir)
			So(db.Save(ctx, "C", OHLCV, prices), ShouldBeTrue)
			s := db.Summary(ctx, "C")
			So(s.Rows, ShouldEqual, 4)
			So(s.Has, ShouldResemble, map[string]bool{OHLCV: true})
		})
	})
}
