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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestConstraints(t *testing.T) {
	t.Parallel()

	Convey("Constraints work correctly", t, func() {
		tc := NewConstraints()
		tc = tc.ExcludeTicker("E")
		tc = tc.Ticker("A", "B", "E")
		tc = tc.StartAt(NewDate(2024, 1, 2)).EndAt(NewDate(2024, 1, 3))

		Convey("CheckTicker", func() {
			So(tc.CheckTicker("A"), ShouldBeTrue)
			So(tc.CheckTicker("B"), ShouldBeTrue)
			So(tc.CheckTicker("E"), ShouldBeFalse)
			So(tc.CheckTicker("UNKNOWN"), ShouldBeFalse)
			So(NewConstraints().CheckTicker("ANY"), ShouldBeTrue)
		})

		Convey("CheckTime", func() {
			So(tc.CheckTime(day(1)), ShouldBeFalse)
			So(tc.CheckTime(day(2)), ShouldBeTrue)
			So(tc.CheckTime(day(3).Add(23*time.Hour)), ShouldBeTrue)
			So(tc.CheckTime(day(4)), ShouldBeFalse)
		})

		Convey("CheckDates", func() {
			So(tc.CheckDates(NewDate(2024, 1, 2), NewDate(2024, 1, 3)), ShouldBeTrue)
			So(tc.CheckDates(NewDate(2024, 1, 1), NewDate(2024, 1, 3)), ShouldBeFalse)
			So(tc.CheckDates(NewDate(2024, 1, 2), NewDate(2024, 1, 4)), ShouldBeFalse)
			open := NewConstraints().EndAt(NewDate(2024, 1, 3))
			So(open.CheckDates(NewDate(1990, 1, 1), NewDate(2024, 1, 3)), ShouldBeTrue)
		})

		Convey("Apply", func() {
			d := NewDataset("A", "B", "C")
			for i := 1; i <= 4; i++ {
				d.AddRow(day(i), float64(i), 10*float64(i), 100*float64(i))
			}
			So(tc.Apply(d), ShouldResemble, NewDataset("A", "B", "C").
				AddRow(day(2), 2, 20, 200).AddRow(day(3), 3, 30, 300))
			tc.Field("C", "X", "A")
			So(tc.Apply(d), ShouldResemble, NewDataset("C", "A").
				AddRow(day(2), 200, 2).AddRow(day(3), 300, 3))
		})
	})
}
