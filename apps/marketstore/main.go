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

// Command marketstore downloads market data from Yahoo Finance into a local
// store of parquet files and keeps it up to date.
//
// Usage:
//
//	marketstore [-config FILE] [-log-level LEVEL] COMMAND [FLAGS]
//
// Run a command with -help for its flags. Commands:
//
//	fetch     initial download of tickers
//	update    incremental update of stored tickers
//	config    show or set configuration keys
//	tickers   manage the tickers file
//	load      print stored data and summaries
//	import    merge a CSV file into the store
//	schedule  run updates periodically
//	history   print the recent fetch and update runs
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"golang.org/x/exp/slices"

	"github.com/stockparfait/marketstore/config"
	"github.com/stockparfait/marketstore/db"
	"github.com/stockparfait/marketstore/history"
	"github.com/stockparfait/marketstore/table"
	"github.com/stockparfait/marketstore/updater"
	"github.com/stockparfait/marketstore/yahoo"
)

type Flags struct {
	Config      string // default: ~/.stockparfait/marketstore/config.toml
	LogLevel    logging.Level
	logLevelSet bool // -log-level overrides the config
	Command     string
	Args        []string // command flags
}

type command struct {
	help string
	run  func(ctx context.Context, app *App, args []string, w io.Writer) error
}

var commands = map[string]command{
	"fetch":    {"initial download of tickers", runFetch},
	"update":   {"incremental update of stored tickers", runUpdate},
	"config":   {"show or set configuration keys", runConfig},
	"tickers":  {"manage the tickers file", runTickers},
	"load":     {"print stored data and summaries", runLoad},
	"import":   {"merge a CSV file into the store", runImport},
	"schedule": {"run updates periodically", runSchedule},
	"history":  {"print the recent fetch and update runs", runHistory},
}

func commandNames() []string {
	var names []string
	for n := range commands {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("marketstore", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: marketstore [flags] COMMAND [command flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\nCommands:\n")
		for _, n := range commandNames() {
			fmt.Fprintf(fs.Output(), "  %-9s %s\n", n, commands[n].help)
		}
	}
	fs.StringVar(&flags.Config, "config", config.DefaultPath(),
		"config file (TOML, or YAML with .yaml extension)")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "log-level" {
			flags.logLevelSet = true
		}
	})
	if fs.NArg() == 0 {
		return nil, errors.Reason("missing command; expected one of: %s",
			strings.Join(commandNames(), ", "))
	}
	flags.Command = fs.Arg(0)
	flags.Args = fs.Args()[1:]
	if _, ok := commands[flags.Command]; !ok {
		return nil, errors.Reason("unknown command '%s'; expected one of: %s",
			flags.Command, strings.Join(commandNames(), ", "))
	}
	return &flags, nil
}

// App is the state shared by the commands.
type App struct {
	Config     *config.Config // with the environment overrides
	ConfigPath string
}

// withOverrides copies the config with the non-empty command line values.
func (a *App) withOverrides(dataDir, interval, period string) (*config.Config, error) {
	c := *a.Config
	if dataDir != "" {
		c.DataDir = config.ExpandHome(dataDir)
	}
	if interval != "" {
		c.Interval = interval
	}
	if period != "" {
		c.Period = period
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid configuration")
	}
	return &c, nil
}

// tickersFileFlag may be given alone, meaning the tickers file in the data
// directory, or with a path: -from-file=PATH.
type tickersFileFlag struct {
	set  bool
	path string
}

var _ flag.Value = &tickersFileFlag{}

func (f *tickersFileFlag) String() string { return f.path }

func (f *tickersFileFlag) Set(v string) error {
	if b, err := strconv.ParseBool(v); err == nil {
		f.set, f.path = b, ""
		return nil
	}
	f.set, f.path = true, config.ExpandHome(v)
	return nil
}

func (f *tickersFileFlag) IsBoolFlag() bool { return true }

// file to read the tickers from; "" if the flag is not set.
func (f *tickersFileFlag) file(c *config.Config) string {
	switch {
	case !f.set:
		return ""
	case f.path != "":
		return f.path
	}
	return c.TickersFile()
}

// tickers from the comma separated list, or the tickers file, or the config.
// Invalid tickers from a file or the config are skipped.
func tickers(ctx context.Context, c *config.Config, list, file string) ([]string, error) {
	switch {
	case list != "":
		return config.ParseTickers(list)
	case file != "":
		return config.LoadTickers(ctx, file)
	}
	ts := config.FilterTickers(ctx, c.Tickers)
	if len(ts) == 0 {
		return nil, errors.Reason("no valid tickers configured")
	}
	return ts, nil
}

// recorder of the run history; Noop when disabled or failed to open.
func recorder(ctx context.Context, c *config.Config) history.Recorder {
	path := c.HistoryPath()
	if path == "" {
		return history.Noop{}
	}
	if err := os.MkdirAll(c.DataDir, 0777); err != nil {
		logging.Warningf(ctx, "run history disabled: %s", err.Error())
		return history.Noop{}
	}
	r, err := history.OpenSQLite(ctx, path)
	if err != nil {
		logging.Warningf(ctx, "run history disabled: %s", err.Error())
		return history.Noop{}
	}
	return r
}

// newUpdater for the config. Close its Recorder when done.
func newUpdater(ctx context.Context, c *config.Config, fundamentals bool) *updater.Updater {
	client := yahoo.NewClient()
	client.Fundamentals = fundamentals
	u := updater.NewUpdater(db.NewDB(c.DataDir), client, c.Interval)
	u.Recorder = recorder(ctx, c)
	return u
}

// resultsTable lists the outcome per ticker, sorted.
func resultsTable(res map[string]bool) *table.Table {
	tbl := table.NewTable("Ticker", "Status")
	var names []string
	for t := range res {
		names = append(names, t)
	}
	slices.Sort(names)
	for _, t := range names {
		status := "ok"
		if !res[t] {
			status = "failed"
		}
		tbl.AddRow(table.Strings{t, status})
	}
	return tbl
}

// reportResults prints the results and fails if any ticker failed.
func reportResults(res map[string]bool, w io.Writer) error {
	if err := resultsTable(res).WriteText(w, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to print results")
	}
	failed := 0
	for _, ok := range res {
		if !ok {
			failed++
		}
	}
	if failed > 0 {
		return errors.Reason("%d of %d tickers failed", failed, len(res))
	}
	return nil
}

func run(ctx context.Context, flags *Flags, w io.Writer) error {
	c, err := config.Load(flags.Config)
	if err != nil {
		return errors.Annotate(err, "failed to load config")
	}
	if !flags.logLevelSet {
		level, err := c.Level()
		if err != nil {
			return err
		}
		ctx = logging.Use(ctx, logging.DefaultGoLogger(level))
	}
	app := &App{Config: c, ConfigPath: flags.Config}
	if err := commands[flags.Command].run(ctx, app, flags.Args, w); err != nil {
		return errors.Annotate(err, "%s failed", flags.Command)
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))
	ctx = fetch.UseClient(ctx, yahoo.NewHTTPClient())

	if err := run(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, "%s", err.Error())
		os.Exit(1)
	}
}
