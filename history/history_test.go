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

package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRun(t *testing.T) {
	t.Parallel()

	Convey("Run methods work", t, func() {
		start := time.Date(2024, time.January, 15, 18, 30, 0, 0, time.UTC)
		r := NewRun(KindUpdate, start)
		r.Results["MSFT"] = true
		r.Results["AAPL"] = true
		r.Results["XXX"] = false
		So(r.Succeeded(), ShouldResemble, []string{"AAPL", "MSFT"})
		So(r.Failed(), ShouldResemble, []string{"XXX"})
		So(r.Duration(), ShouldEqual, time.Duration(0))
		r.Finished = start.Add(time.Minute)
		So(r.Duration(), ShouldEqual, time.Minute)
		So(NewRun(KindFetch, start).ID, ShouldNotEqual, r.ID)
	})
}

func TestSQLite(t *testing.T) {
	tmpdir, tmpdirErr := os.MkdirTemp("", "test_history")
	defer os.RemoveAll(tmpdir)

	Convey("SQLite recorder works", t, func() {
		So(tmpdirErr, ShouldBeNil)
		ctx := context.Background()
		t0 := time.Date(2024, time.January, 15, 18, 30, 0, 0, time.UTC)
		r1 := NewRun(KindFetch, t0)
		r1.Finished = t0.Add(time.Minute)
		r1.Results["AAPL"] = true
		r1.Results["XXX"] = false
		r2 := NewRun(KindUpdate, t0.Add(24*time.Hour))
		r2.Finished = r2.Started.Add(time.Second)
		r2.Results["AAPL"] = true

		// A fresh database for each test case.
		s, err := OpenSQLite(ctx, filepath.Join(tmpdir, r1.ID.String()+".db"))
		So(err, ShouldBeNil)
		defer s.Close()

		So(s.RecordRun(ctx, r1), ShouldBeNil)
		So(s.RecordRun(ctx, r2), ShouldBeNil)

		Convey("newest first", func() {
			runs, err := s.Runs(ctx, 0)
			So(err, ShouldBeNil)
			So(runs, ShouldResemble, []*Run{r2, r1})
		})

		Convey("limited", func() {
			runs, err := s.Runs(ctx, 1)
			So(err, ShouldBeNil)
			So(runs, ShouldResemble, []*Run{r2})
		})

		Convey("duplicate run is rejected", func() {
			So(s.RecordRun(ctx, r1), ShouldNotBeNil)
		})
	})

	Convey("Noop recorder does nothing", t, func() {
		var r Recorder = Noop{}
		So(r.RecordRun(context.Background(), NewRun(KindFetch, time.Now())), ShouldBeNil)
		runs, err := r.Runs(context.Background(), 10)
		So(err, ShouldBeNil)
		So(runs, ShouldBeNil)
	})
}
