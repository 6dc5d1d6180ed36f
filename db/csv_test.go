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
	"math"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCSV(t *testing.T) {
	t.Parallel()

	Convey("ReadCSVDataset works", t, func() {
		Convey("with default config", func() {
			r := strings.NewReader(`Date,Open,Close
2024-01-03 00:00:00-05:00,11,11.5
2024-01-02 00:00:00-05:00,10,
`)
			d, err := ReadCSVDataset(r, nil)
			So(err, ShouldBeNil)
			So(d.Columns, ShouldResemble, []string{"Open", "Close"})
			So(d.Times(), ShouldResemble, []time.Time{day(2), day(3)})
			So(d.Column("Open"), ShouldResemble, []float64{10, 11})
			So(math.IsNaN(d.Rows[0].Values[1]), ShouldBeTrue)
			So(d.Rows[1].Values[1], ShouldEqual, 11.5)
		})

		Convey("with custom columns and intraday timestamps", func() {
			r := strings.NewReader(`Timestamp,Junk,Price
2024-01-02 14:30:00,x,1.5
2024-01-02 14:31:00,y,n/a
`)
			c := &CSVConfig{DateColumn: "Timestamp", Columns: []string{"Price"}, Intraday: true}
			d, err := ReadCSVDataset(r, c)
			So(err, ShouldBeNil)
			So(d.Columns, ShouldResemble, []string{"Price"})
			So(d.Times(), ShouldResemble, []time.Time{
				time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC),
				time.Date(2024, 1, 2, 14, 31, 0, 0, time.UTC),
			})
			So(d.Rows[0].Values, ShouldResemble, []float64{1.5})
			So(math.IsNaN(d.Rows[1].Values[0]), ShouldBeTrue)
		})

		Convey("errors", func() {
			_, err := ReadCSVDataset(strings.NewReader(""), nil)
			So(err, ShouldNotBeNil)
			_, err = ReadCSVDataset(strings.NewReader("Time,A\n2024-01-01,1\n"), nil)
			So(err, ShouldNotBeNil)
			_, err = ReadCSVDataset(strings.NewReader("Date,A\nnever,1\n"), nil)
			So(err, ShouldNotBeNil)
			c := NewCSVConfig()
			c.Columns = []string{"B"}
			_, err = ReadCSVDataset(strings.NewReader("Date,A\n2024-01-01,1\n"), c)
			So(err, ShouldNotBeNil)
		})
	})
}
