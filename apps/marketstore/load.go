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
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/stockparfait/errors"

	"github.com/stockparfait/marketstore/config"
	"github.com/stockparfait/marketstore/db"
	"github.com/stockparfait/marketstore/table"
)

type loadFlags struct {
	// Exactly one of Summary, ListTickers, TickerInfo, History or Panel must be
	// set.
	Summary     bool
	ListTickers bool
	TickerInfo  string
	History     string
	Panel       string // field
	Tickers     string // for -panel; default: all stored
	Fill        db.Fill
	DataType    string
	Start       db.Date
	End         db.Date
	Fields      string
	Format      table.Format
	Output      string
	Rows        int
	DataDir     string
}

func parseLoadFlags(args []string) (*loadFlags, error) {
	var flags loadFlags
	var format string
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	fs.BoolVar(&flags.Summary, "summary", false, "summary of all stored tickers")
	fs.BoolVar(&flags.ListTickers, "list-tickers", false, "list stored tickers")
	fs.StringVar(&flags.TickerInfo, "ticker-info", "", "data types stored for the ticker")
	fs.StringVar(&flags.History, "history", "", "print a dataset of the ticker")
	fs.StringVar(&flags.Panel, "panel", "", "print the field for several tickers, a column per ticker")
	fs.StringVar(&flags.Tickers, "tickers", "", "comma separated tickers for -panel; default: all stored")
	var fill string
	fs.StringVar(&fill, "fill", "ffill", "missing values in -panel: none, ffill, bfill")
	fs.StringVar(&flags.DataType, "type", db.OHLCV, "data type for -history and -panel")
	fs.Var(&flags.Start, "start", "first date for -history and -panel, YYYY-MM-DD")
	fs.Var(&flags.End, "end", "last date for -history and -panel, YYYY-MM-DD")
	fs.StringVar(&flags.Fields, "fields", "", "comma separated columns for -history; default: all")
	fs.StringVar(&format, "format", "text", "output format: text, csv, json")
	fs.StringVar(&flags.Output, "output", "", "write to this file; default: stdout")
	fs.IntVar(&flags.Rows, "rows", 0, "print only the last N rows of -history or -panel")
	fs.StringVar(&flags.DataDir, "data-dir", "", "data directory; default: from config")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	kinds := 0
	for _, set := range []bool{flags.Summary, flags.ListTickers,
		flags.TickerInfo != "", flags.History != "", flags.Panel != ""} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, errors.Reason(
			"expected exactly one of -summary, -list-tickers, -ticker-info, -history or -panel")
	}
	f, err := table.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	flags.Format = f
	if flags.Fill, err = db.ParseFill(fill); err != nil {
		return nil, err
	}
	return &flags, nil
}

func summaryTable(ctx context.Context, d *db.DB) *table.Table {
	tbl := table.NewTable(db.SummaryHeader()...)
	for _, t := range d.Tickers(ctx) {
		tbl.AddRow(d.Summary(ctx, t))
	}
	return tbl
}

func tickersTable(ctx context.Context, d *db.DB) *table.Table {
	tbl := table.NewTable("Ticker")
	for _, t := range d.Tickers(ctx) {
		tbl.AddRow(table.Strings{t})
	}
	return tbl
}

func tickerInfoTable(ctx context.Context, d *db.DB, ticker string) (*table.Table, error) {
	data := d.Load(ctx, ticker)
	if len(data) == 0 {
		return nil, errors.Reason("no data stored for %s", ticker)
	}
	tbl := table.NewTable("Data Type", "Rows", "Start", "End", "Columns")
	for _, t := range d.DataTypes(ctx, ticker) {
		ds, ok := data[t]
		if !ok {
			continue
		}
		var start, end string
		if e, ok := ds.Earliest(); ok {
			start = db.FormatTime(e)
		}
		if l, ok := ds.Latest(); ok {
			end = db.FormatTime(l)
		}
		tbl.AddRow(table.Strings{t, fmt.Sprintf("%d", ds.Len()), start, end,
			strings.Join(ds.Columns, ", ")})
	}
	if len(data) > 1 {
		start, end := db.Span(data)
		tbl.AddRow(table.Strings{"all", "", start.String(), end.String(), ""})
	}
	return tbl, nil
}

func historyTable(ctx context.Context, d *db.DB, flags *loadFlags) (*table.Table, error) {
	c := db.NewConstraints().StartAt(flags.Start).EndAt(flags.End)
	if flags.Fields != "" {
		for _, f := range strings.Split(flags.Fields, ",") {
			c.Field(strings.TrimSpace(f))
		}
	}
	ds := d.History(ctx, flags.History, flags.DataType, c)
	if ds == nil {
		return nil, errors.Reason("no %s data for %s", flags.DataType, flags.History)
	}
	tbl := table.NewTable(ds.Header()...)
	for _, r := range ds.Rows {
		tbl.AddRow(r)
	}
	return tbl, nil
}

func panelTable(ctx context.Context, d *db.DB, flags *loadFlags) (*table.Table, error) {
	var ts []string
	if flags.Tickers != "" {
		var err error
		if ts, err = config.ParseTickers(flags.Tickers); err != nil {
			return nil, err
		}
	}
	c := db.NewConstraints().StartAt(flags.Start).EndAt(flags.End)
	p := d.Panel(ctx, ts, flags.DataType, flags.Panel, c, flags.Fill)
	if len(p.Columns) == 0 {
		return nil, errors.Reason("no %s data with field '%s'", flags.DataType, flags.Panel)
	}
	tbl := table.NewTable(p.Header()...)
	for _, r := range p.Rows {
		tbl.AddRow(r)
	}
	return tbl, nil
}

func runLoad(ctx context.Context, app *App, args []string, w io.Writer) error {
	flags, err := parseLoadFlags(args)
	if err != nil {
		return err
	}
	c, err := app.withOverrides(flags.DataDir, "", "")
	if err != nil {
		return err
	}
	d := db.NewDB(c.DataDir)
	var tbl *table.Table
	p := table.Params{}
	switch {
	case flags.Summary:
		tbl = summaryTable(ctx, d)
	case flags.ListTickers:
		tbl = tickersTable(ctx, d)
	case flags.TickerInfo != "":
		if tbl, err = tickerInfoTable(ctx, d, flags.TickerInfo); err != nil {
			return err
		}
	case flags.Panel != "":
		if tbl, err = panelTable(ctx, d, flags); err != nil {
			return err
		}
		p = table.Params{Rows: flags.Rows, Last: true}
	default:
		if tbl, err = historyTable(ctx, d, flags); err != nil {
			return err
		}
		p = table.Params{Rows: flags.Rows, Last: true}
	}
	if flags.Output != "" {
		f, err := os.Create(flags.Output)
		if err != nil {
			return errors.Annotate(err, "failed to create '%s'", flags.Output)
		}
		defer f.Close()
		w = f
	}
	if err := tbl.Write(w, flags.Format, p); err != nil {
		return errors.Annotate(err, "failed to print the table")
	}
	return nil
}

type historyFlags struct {
	Limit  int
	Format table.Format
}

func parseHistoryFlags(args []string) (*historyFlags, error) {
	var flags historyFlags
	var format string
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	fs.IntVar(&flags.Limit, "limit", 10, "number of recent runs; 0 for all")
	fs.StringVar(&format, "format", "text", "output format: text, csv, json")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f, err := table.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	flags.Format = f
	return &flags, nil
}

func runHistory(ctx context.Context, app *App, args []string, w io.Writer) error {
	flags, err := parseHistoryFlags(args)
	if err != nil {
		return err
	}
	if app.Config.HistoryPath() == "" {
		return errors.Reason("run history is disabled; set history_db in %s", app.ConfigPath)
	}
	r := recorder(ctx, app.Config)
	defer r.Close()

	runs, err := r.Runs(ctx, flags.Limit)
	if err != nil {
		return errors.Annotate(err, "failed to read the run history")
	}
	tbl := table.NewTable("ID", "Kind", "Started", "Duration", "OK", "Failed")
	for _, run := range runs {
		tbl.AddRow(table.Strings{
			run.ID.String(),
			run.Kind,
			run.Started.Local().Format("2006-01-02 15:04:05"),
			run.Duration().Round(time.Millisecond).String(),
			fmt.Sprintf("%d", len(run.Succeeded())),
			strings.Join(run.Failed(), " "),
		})
	}
	return tbl.Write(w, flags.Format, table.Params{})
}

type configFlags struct {
	Show bool
	Set  string // key; the value is the positional argument
	Args []string
}

func parseConfigFlags(args []string) (*configFlags, error) {
	var flags configFlags
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	fs.BoolVar(&flags.Show, "show", false, "print the configuration")
	fs.StringVar(&flags.Set, "set", "", "set KEY to the VALUE argument: -set KEY VALUE")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	flags.Args = fs.Args()
	if flags.Show == (flags.Set != "") {
		return nil, errors.Reason("expected exactly one of -show or -set")
	}
	if flags.Set != "" && len(flags.Args) != 1 {
		return nil, errors.Reason("-set %s requires exactly one value", flags.Set)
	}
	return &flags, nil
}

func runConfig(ctx context.Context, app *App, args []string, w io.Writer) error {
	flags, err := parseConfigFlags(args)
	if err != nil {
		return err
	}
	if flags.Show {
		data, err := app.Config.Marshal(config.IsYAML(app.ConfigPath))
		if err != nil {
			return errors.Annotate(err, "failed to encode config")
		}
		fmt.Fprintf(w, "# %s\n", app.ConfigPath)
		_, err = w.Write(data)
		return err
	}
	// Environment overrides are not saved.
	c, err := config.LoadFile(app.ConfigPath)
	if err != nil {
		return err
	}
	if err := c.Set(flags.Set, flags.Args[0]); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return errors.Annotate(err, "not saving invalid config")
	}
	return c.Save(app.ConfigPath)
}

type tickersFlags struct {
	Save         string
	Load         bool
	UpdateConfig bool
	DataDir      string
}

func parseTickersFlags(args []string) (*tickersFlags, error) {
	var flags tickersFlags
	fs := flag.NewFlagSet("tickers", flag.ExitOnError)
	fs.StringVar(&flags.Save, "save", "", "comma separated tickers to write to tickers.txt")
	fs.BoolVar(&flags.Load, "load", false, "print the tickers from tickers.txt")
	fs.BoolVar(&flags.UpdateConfig, "update-config", false, "copy tickers.txt into the config")
	fs.StringVar(&flags.DataDir, "data-dir", "", "data directory; default: from config")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	kinds := 0
	for _, set := range []bool{flags.Save != "", flags.Load, flags.UpdateConfig} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, errors.Reason("expected exactly one of -save, -load or -update-config")
	}
	return &flags, nil
}

func runTickers(ctx context.Context, app *App, args []string, w io.Writer) error {
	flags, err := parseTickersFlags(args)
	if err != nil {
		return err
	}
	c, err := app.withOverrides(flags.DataDir, "", "")
	if err != nil {
		return err
	}
	switch {
	case flags.Save != "":
		ts, err := config.ParseTickers(flags.Save)
		if err != nil {
			return err
		}
		return config.SaveTickers(c.TickersFile(), ts)
	case flags.Load:
		ts, err := config.LoadTickers(ctx, c.TickersFile())
		if err != nil {
			return err
		}
		for _, t := range ts {
			fmt.Fprintln(w, t)
		}
		return nil
	}
	ts, err := config.LoadTickers(ctx, c.TickersFile())
	if err != nil {
		return err
	}
	fc, err := config.LoadFile(app.ConfigPath)
	if err != nil {
		return err
	}
	fc.Tickers = ts
	return fc.Save(app.ConfigPath)
}
