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
	"path/filepath"
	"testing"
	"time"

	"github.com/stockparfait/testutil"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	. "github.com/smartystreets/goconvey/convey"
)

// writeUntimedParquet writes a file whose Date column is a plain number.
func writeUntimedParquet(fileName string) error {
	f, err := local.NewLocalFileWriter(fileName)
	if err != nil {
		return err
	}
	defer f.Close()
	pw, err := writer.NewCSVWriter([]string{
		"name=Date, type=DOUBLE",
		"name=Close, type=DOUBLE",
	}, f, 1)
	if err != nil {
		return err
	}
	if err := pw.Write([]interface{}{1.0, 10.0}); err != nil {
		return err
	}
	return pw.WriteStop()
}

func TestDB(t *testing.T) {
	t.Parallel()
	tmpdir, tmpdirErr := os.MkdirTemp("", "testdb")
	defer os.RemoveAll(tmpdir)

	Convey("Test setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("Storage accessor works", t, func() {
		ctx := context.Background()
		db := NewDB(filepath.Join(tmpdir, "db"))
		prices := NewDataset(OHLCVColumns()...).
			AddRow(day(2), 10.0, 11.0, 9.0, 10.5, 10.4, 1000.0, 0.0, 0.0).
			AddRow(day(3), 10.5, 12.0, 10.0, 11.5, 11.4, 1200.0, 0.25, 0.0).
			AddRow(day(4), 11.5, 12.5, 11.0, 12.0, 11.9, 900.0, 0.0, 2.0)
		divs := NewDataset(DividendsColumn).AddRow(day(3), 0.25)

		Convey("round trip", func() {
			So(db.Save(ctx, "RT", OHLCV, prices), ShouldBeTrue)
			_, err := os.Stat(filepath.Join(tmpdir, "db", "RT", "ohlcv.parquet"))
			So(err, ShouldBeNil)
			loaded := db.Load(ctx, "RT")
			So(len(loaded), ShouldEqual, 1)
			So(loaded[OHLCV], ShouldResemble, prices)
		})

		Convey("missing values round trip as NaN", func() {
			d := NewDataset("A", "B").AddRow(day(1), 1.0).AddRow(day(2), math.NaN(), 2.0)
			So(db.Save(ctx, "NAN", "custom", d), ShouldBeTrue)
			loaded := db.Load(ctx, "NAN", "custom")["custom"]
			So(loaded, ShouldNotBeNil)
			So(loaded.Columns, ShouldResemble, []string{"A", "B"})
			So(loaded.Times(), ShouldResemble, []time.Time{day(1), day(2)})
			So(loaded.Rows[0].Values[0], ShouldEqual, 1.0)
			So(math.IsNaN(loaded.Rows[0].Values[1]), ShouldBeTrue)
			So(math.IsNaN(loaded.Rows[1].Values[0]), ShouldBeTrue)
			So(loaded.Rows[1].Values[1], ShouldEqual, 2.0)
		})

		Convey("intraday timestamps keep the time of day", func() {
			tm := time.Date(2024, 1, 2, 14, 30, 0, 123, time.UTC)
			d := NewDataset("A").AddRow(tm, 1.0)
			So(db.Save(ctx, "INTRA", OHLCV, d), ShouldBeTrue)
			latest, ok := db.LatestTimestamp(ctx, "INTRA", OHLCV)
			So(ok, ShouldBeTrue)
			So(latest, ShouldResemble, tm)
		})

		Convey("SaveTicker skips empty datasets", func() {
			data := map[string]*Dataset{
				OHLCV:     prices,
				Dividends: divs,
				Splits:    NewDataset(SplitsColumn),
				"nil":     nil,
			}
			So(db.SaveTicker(ctx, "ST", data), ShouldBeTrue)
			So(db.DataTypes(ctx, "ST"), ShouldResemble, []string{Dividends, OHLCV})
			So(db.SaveTicker(ctx, "EMPTY", map[string]*Dataset{Splits: NewDataset()}), ShouldBeFalse)
			_, err := os.Stat(filepath.Join(tmpdir, "db", "EMPTY"))
			So(os.IsNotExist(err), ShouldBeTrue)
		})

		Convey("Load", func() {
			So(db.SaveTicker(ctx, "LD", map[string]*Dataset{OHLCV: prices, Dividends: divs}), ShouldBeTrue)

			Convey("returns an empty map for an unknown ticker", func() {
				So(db.Load(ctx, "UNKNOWN"), ShouldResemble, map[string]*Dataset{})
			})

			Convey("loads a subset of data types, skipping missing ones", func() {
				loaded := db.Load(ctx, "LD", Dividends, Splits)
				So(len(loaded), ShouldEqual, 1)
				So(loaded[Dividends], ShouldResemble, divs)
			})

			Convey("skips unreadable files", func() {
				So(testutil.WriteFile(db.FileName("LD", Splits), "garbage"), ShouldBeNil)
				loaded := db.Load(ctx, "LD")
				So(len(loaded), ShouldEqual, 2)
				So(loaded[OHLCV], ShouldResemble, prices)
				_, ok := db.LatestTimestamp(ctx, "LD", Splits)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("Latest and earliest timestamps", func() {
			So(db.Save(ctx, "TS", OHLCV, prices), ShouldBeTrue)
			latest, ok := db.LatestTimestamp(ctx, "TS", OHLCV)
			So(ok, ShouldBeTrue)
			So(latest, ShouldResemble, day(4))
			earliest, ok := db.EarliestTimestamp(ctx, "TS", OHLCV)
			So(ok, ShouldBeTrue)
			So(earliest, ShouldResemble, day(2))

			_, ok = db.LatestTimestamp(ctx, "TS", Dividends)
			So(ok, ShouldBeFalse)
			_, ok = db.EarliestTimestamp(ctx, "NONE", OHLCV)
			So(ok, ShouldBeFalse)
		})

		Convey("index that is not a timestamp", func() {
			So(os.MkdirAll(filepath.Join(tmpdir, "db", "NT"), 0777), ShouldBeNil)
			fileName := db.FileName("NT", OHLCV)
			So(writeUntimedParquet(fileName), ShouldBeNil)

			_, err := readParquet(fileName)
			So(err, ShouldHaveSameTypeAs, &NotTimeIndexError{})

			_, ok := db.LatestTimestamp(ctx, "NT", OHLCV)
			So(ok, ShouldBeFalse)
			_, ok = db.EarliestTimestamp(ctx, "NT", OHLCV)
			So(ok, ShouldBeFalse)
			So(db.Load(ctx, "NT"), ShouldResemble, map[string]*Dataset{})
		})

		Convey("write failures return false", func() {
			So(db.Save(ctx, "BAD", OHLCV, NewDataset("Date").AddRow(day(1), 1.0)), ShouldBeFalse)
			So(db.Save(ctx, "BAD", OHLCV, NewDataset("A,B").AddRow(day(1), 1.0)), ShouldBeFalse)
			So(db.Save(ctx, "BAD", OHLCV, nil), ShouldBeFalse)

			So(os.MkdirAll(db.Dir, 0777), ShouldBeNil)
			So(testutil.WriteFile(filepath.Join(db.Dir, "FILE"), "not a dir"), ShouldBeNil)
			So(db.Save(ctx, "FILE", OHLCV, prices), ShouldBeFalse)
		})

		Convey("Tickers and DataTypes", func() {
			d := NewDB(filepath.Join(tmpdir, "list"))
			So(d.Tickers(ctx), ShouldBeNil)
			So(d.SaveTicker(ctx, "B", map[string]*Dataset{OHLCV: prices, Dividends: divs}), ShouldBeTrue)
			So(d.Save(ctx, "A", OHLCV, prices), ShouldBeTrue)
			So(testutil.WriteFile(filepath.Join(d.Dir, "tickers.txt"), "A\nB\n"), ShouldBeNil)
			So(testutil.WriteFile(filepath.Join(d.Dir, "A", "notes.txt"), "x"), ShouldBeNil)
			So(d.Tickers(ctx), ShouldResemble, []string{"A", "B"})
			So(d.DataTypes(ctx, "A"), ShouldResemble, []string{OHLCV})
			So(d.DataTypes(ctx, "B"), ShouldResemble, []string{Dividends, OHLCV})
			So(d.DataTypes(ctx, "C"), ShouldBeNil)
		})

		Convey("History applies constraints", func() {
			So(db.Save(ctx, "H", OHLCV, prices), ShouldBeTrue)
			c := NewConstraints().StartAt(NewDate(2024, 1, 3)).Field(CloseColumn, "Unknown")
			h := db.History(ctx, "H", OHLCV, c)
			So(h, ShouldResemble, NewDataset(CloseColumn).
				AddRow(day(3), 11.5).AddRow(day(4), 12.0))
			So(db.History(ctx, "H", Dividends, nil), ShouldBeNil)
			So(db.History(ctx, "H", OHLCV, nil), ShouldResemble, prices)
		})
	})
}
