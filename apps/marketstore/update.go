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
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/marketstore/config"
	"github.com/stockparfait/marketstore/db"
	"github.com/stockparfait/marketstore/scheduler"
	"github.com/stockparfait/marketstore/updater"
)

type fetchFlags struct {
	Tickers  string // comma separated; default: from config
	FromFile tickersFileFlag
	Period   string
	Interval string
	DataDir  string
	Force    bool
}

func parseFetchFlags(args []string) (*fetchFlags, error) {
	var flags fetchFlags
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	fs.StringVar(&flags.Tickers, "tickers", "", "comma separated tickers; default: from config")
	fs.Var(&flags.FromFile, "from-file", "read tickers from tickers.txt in the data dir, or -from-file=PATH")
	fs.StringVar(&flags.Period, "period", "", "download period: 1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max")
	fs.StringVar(&flags.Interval, "interval", "", "bar interval, e.g. 1d, 1wk, 1h")
	fs.StringVar(&flags.DataDir, "data-dir", "", "data directory; default: from config")
	fs.BoolVar(&flags.Force, "force", false, "download the full period even for stored tickers")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if flags.Tickers != "" && flags.FromFile.set {
		return nil, errors.Reason("-tickers and -from-file are mutually exclusive")
	}
	return &flags, nil
}

func runFetch(ctx context.Context, app *App, args []string, w io.Writer) error {
	flags, err := parseFetchFlags(args)
	if err != nil {
		return err
	}
	c, err := app.withOverrides(flags.DataDir, flags.Interval, flags.Period)
	if err != nil {
		return err
	}
	ts, err := tickers(ctx, c, flags.Tickers, flags.FromFile.file(c))
	if err != nil {
		return err
	}
	u := newUpdater(ctx, c, c.Fundamentals)
	defer u.Recorder.Close()

	logging.Infof(ctx, "fetching %d tickers for period %s", len(ts), c.Period)
	return reportResults(u.FetchTickers(ctx, ts, c.Period, flags.Force), w)
}

type updateFlags struct {
	Tickers  string
	FromFile tickersFileFlag
	Interval string
	DataDir  string
	End      db.Date // default: today
}

func parseUpdateFlags(args []string) (*updateFlags, error) {
	var flags updateFlags
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	fs.StringVar(&flags.Tickers, "tickers", "", "comma separated tickers; default: from config")
	fs.Var(&flags.FromFile, "from-file", "read tickers from tickers.txt in the data dir, or -from-file=PATH")
	fs.StringVar(&flags.Interval, "interval", "", "bar interval, e.g. 1d, 1wk, 1h")
	fs.StringVar(&flags.DataDir, "data-dir", "", "data directory; default: from config")
	fs.Var(&flags.End, "end", "last date to update, YYYY-MM-DD; default: today")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if flags.Tickers != "" && flags.FromFile.set {
		return nil, errors.Reason("-tickers and -from-file are mutually exclusive")
	}
	return &flags, nil
}

func endTime(d db.Date) time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	return d.ToTime()
}

func runUpdate(ctx context.Context, app *App, args []string, w io.Writer) error {
	flags, err := parseUpdateFlags(args)
	if err != nil {
		return err
	}
	c, err := app.withOverrides(flags.DataDir, flags.Interval, "")
	if err != nil {
		return err
	}
	ts, err := tickers(ctx, c, flags.Tickers, flags.FromFile.file(c))
	if err != nil {
		return err
	}
	// Statements are refreshed by fetch; updates only extend the price bars.
	u := newUpdater(ctx, c, false)
	defer u.Recorder.Close()

	return reportResults(u.UpdateTickers(ctx, ts, endTime(flags.End)), w)
}

type importFlags struct {
	Ticker     string
	File       string
	DataType   string
	DateColumn string
	Columns    string
	Intraday   bool
	DataDir    string
}

func parseImportFlags(args []string) (*importFlags, error) {
	var flags importFlags
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	fs.StringVar(&flags.Ticker, "ticker", "", "ticker to import into (required)")
	fs.StringVar(&flags.File, "file", "", "CSV file with a header row (required)")
	fs.StringVar(&flags.DataType, "type", db.OHLCV, "data type")
	fs.StringVar(&flags.DateColumn, "date-column", db.IndexColumn, "name of the date column")
	fs.StringVar(&flags.Columns, "columns", "", "comma separated columns to import; default: all")
	fs.BoolVar(&flags.Intraday, "intraday", false, "keep the time of day")
	fs.StringVar(&flags.DataDir, "data-dir", "", "data directory; default: from config")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if flags.Ticker == "" || flags.File == "" {
		return nil, errors.Reason("-ticker and -file are required")
	}
	t, err := config.ValidateTicker(flags.Ticker)
	if err != nil {
		return nil, err
	}
	flags.Ticker = t
	return &flags, nil
}

func runImport(ctx context.Context, app *App, args []string, w io.Writer) error {
	flags, err := parseImportFlags(args)
	if err != nil {
		return err
	}
	c, err := app.withOverrides(flags.DataDir, "", "")
	if err != nil {
		return err
	}
	f, err := os.Open(flags.File)
	if err != nil {
		return errors.Annotate(err, "failed to open '%s'", flags.File)
	}
	defer f.Close()

	cfg := db.NewCSVConfig()
	cfg.DateColumn = flags.DateColumn
	cfg.Intraday = flags.Intraday
	if flags.Columns != "" {
		for _, col := range strings.Split(flags.Columns, ",") {
			cfg.Columns = append(cfg.Columns, strings.TrimSpace(col))
		}
	}
	ds, err := db.ReadCSVDataset(f, cfg)
	if err != nil {
		return errors.Annotate(err, "failed to read '%s'", flags.File)
	}
	if ds.Empty() {
		return errors.Reason("no rows in '%s'", flags.File)
	}
	u := updater.NewUpdater(db.NewDB(c.DataDir), nil, c.Interval)
	if !u.MergeTicker(ctx, flags.Ticker, map[string]*db.Dataset{flags.DataType: ds}) {
		return errors.Reason("failed to save %s data for %s", flags.DataType, flags.Ticker)
	}
	logging.Infof(ctx, "imported %d rows of %s data for %s",
		ds.Len(), flags.DataType, flags.Ticker)
	return nil
}

type scheduleFlags struct {
	Cron     string
	RunNow   bool
	FromFile tickersFileFlag
	DataDir  string
}

func parseScheduleFlags(args []string) (*scheduleFlags, error) {
	var flags scheduleFlags
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	fs.StringVar(&flags.Cron, "cron", "", "cron spec with seconds; default: from config")
	fs.BoolVar(&flags.RunNow, "run-now", false, "also update once at start")
	fs.Var(&flags.FromFile, "from-file", "read tickers from tickers.txt in the data dir, or -from-file=PATH, on every run")
	fs.StringVar(&flags.DataDir, "data-dir", "", "data directory; default: from config")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &flags, nil
}

// updateJob updates the configured tickers. The tickers are resolved on every
// run, so that edits of the tickers file take effect.
func updateJob(c *config.Config, file string) func(context.Context) {
	return func(ctx context.Context) {
		ts, err := tickers(ctx, c, "", file)
		if err != nil {
			logging.Errorf(ctx, "scheduled update skipped: %s", err.Error())
			return
		}
		u := newUpdater(ctx, c, false)
		defer u.Recorder.Close()
		u.UpdateTickers(ctx, ts, time.Time{})
	}
}

func runSchedule(ctx context.Context, app *App, args []string, w io.Writer) error {
	flags, err := parseScheduleFlags(args)
	if err != nil {
		return err
	}
	c, err := app.withOverrides(flags.DataDir, "", "")
	if err != nil {
		return err
	}
	spec := c.Schedule
	if flags.Cron != "" {
		spec = flags.Cron
	}
	// Jobs see the cancellation on SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := scheduler.New(ctx, spec, updateJob(c, flags.FromFile.file(c)))
	if err != nil {
		return err
	}

	if flags.RunNow {
		s.RunNow()
	}
	s.Start()
	logging.Infof(ctx, "scheduled updates on '%s', next at %s", spec,
		s.Next().Format(time.RFC1123))
	<-ctx.Done()
	logging.Infof(ctx, "stopping the scheduler")
	s.Stop()
	return nil
}
