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

// Package config implements the user configuration of the market store.
//
// The configuration is a TOML file (or YAML, when the file name ends with
// .yaml or .yml) with the following keys:
//
//	data_dir = "~/.stockparfait/marketstore/data"
//	tickers = ["AAPL", "MSFT", "GOOGL", "AMZN", "META"]
//	period = "max"          # initial download period
//	interval = "1d"         # bar interval
//	log_level = "info"
//	fundamentals = true     # download annual statements
//	schedule = "0 30 18 * * 1-5"  # cron spec with seconds
//	history_db = ""         # SQLite run history; relative to data_dir
//
// Keys missing from the file take their default values. Some of the keys may
// be overridden by environment variables, see Load.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"gopkg.in/yaml.v3"

	"github.com/stockparfait/marketstore/scheduler"
	"github.com/stockparfait/marketstore/yahoo"
)

// Environment variables.
const (
	EnvConfig   = "MARKETSTORE_CONFIG"
	EnvDataDir  = "MARKETSTORE_DATA_DIR"
	EnvInterval = "MARKETSTORE_INTERVAL"
	EnvLogLevel = "MARKETSTORE_LOG_LEVEL"
)

// TickersFileName is the list of tickers in the data directory.
const TickersFileName = "tickers.txt"

// Config of the market store.
type Config struct {
	DataDir      string   `toml:"data_dir" yaml:"data_dir"`
	Tickers      []string `toml:"tickers" yaml:"tickers"`
	Period       string   `toml:"period" yaml:"period"`
	Interval     string   `toml:"interval" yaml:"interval"`
	LogLevel     string   `toml:"log_level" yaml:"log_level"`
	Fundamentals bool     `toml:"fundamentals" yaml:"fundamentals"`
	Schedule     string   `toml:"schedule" yaml:"schedule"`
	HistoryDB    string   `toml:"history_db" yaml:"history_db"`
}

// Keys of the configuration, in the file order.
var Keys = []string{
	"data_dir", "tickers", "period", "interval", "log_level", "fundamentals",
	"schedule", "history_db",
}

// DefaultDir is the directory of the default config file.
func DefaultDir() string {
	return filepath.Join(os.Getenv("HOME"), ".stockparfait", "marketstore")
}

// DefaultPath of the config file, unless overridden by MARKETSTORE_CONFIG.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return ExpandHome(p)
	}
	return filepath.Join(DefaultDir(), "config.toml")
}

// Default configuration.
func Default() *Config {
	return &Config{
		DataDir:      filepath.Join(DefaultDir(), "data"),
		Tickers:      []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META"},
		Period:       "max",
		Interval:     "1d",
		LogLevel:     "info",
		Fundamentals: true,
		Schedule:     "0 30 18 * * 1-5",
	}
}

// ExpandHome replaces the leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return os.Getenv("HOME")
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(os.Getenv("HOME"), path[2:])
	}
	return path
}

// IsYAML tells whether the config file at path is in YAML format.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load the config file and apply the environment overrides.
func Load(path string) (*Config, error) {
	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	return c, nil
}

// LoadFile reads the config file without the environment overrides. A missing
// file is created with the default values.
func LoadFile(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := c.Save(path); err != nil {
			return nil, errors.Annotate(err, "failed to create default config")
		}
	case err != nil:
		return nil, errors.Annotate(err, "failed to read config file '%s'", path)
	case IsYAML(path):
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errors.Annotate(err, "failed to parse config file '%s'", path)
		}
	default:
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(c); err != nil {
			return nil, errors.Annotate(err, "failed to parse config file '%s'", path)
		}
	}
	c.DataDir = ExpandHome(c.DataDir)
	return c, nil
}

// ApplyEnv overrides the keys set by the environment variables
// MARKETSTORE_DATA_DIR, MARKETSTORE_INTERVAL and MARKETSTORE_LOG_LEVEL.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = ExpandHome(v)
	}
	if v := os.Getenv(EnvInterval); v != "" {
		c.Interval = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Marshal the config in TOML, or YAML when yamlFormat is true.
func (c *Config) Marshal(yamlFormat bool) ([]byte, error) {
	if yamlFormat {
		return yaml.Marshal(c)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save the config to path, creating the parent directory if necessary.
func (c *Config) Save(path string) error {
	data, err := c.Marshal(IsYAML(path))
	if err != nil {
		return errors.Annotate(err, "failed to encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return errors.Annotate(err, "failed to create directory for '%s'", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Annotate(err, "failed to write config file '%s'", path)
	}
	return nil
}

// Set the key to the string value. Tickers are comma separated.
func (c *Config) Set(key, value string) error {
	switch key {
	case "data_dir":
		c.DataDir = ExpandHome(value)
	case "tickers":
		tickers, err := ParseTickers(value)
		if err != nil {
			return errors.Annotate(err, "invalid tickers")
		}
		c.Tickers = tickers
	case "period":
		c.Period = value
	case "interval":
		c.Interval = value
	case "log_level":
		c.LogLevel = value
	case "fundamentals":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Annotate(err, "fundamentals must be true or false")
		}
		c.Fundamentals = b
	case "schedule":
		c.Schedule = value
	case "history_db":
		c.HistoryDB = value
	default:
		return errors.Reason("unknown config key '%s'; known keys: %s",
			key, strings.Join(Keys, ", "))
	}
	return nil
}

// Level parses the log level.
func (c *Config) Level() (logging.Level, error) {
	var l logging.Level
	if err := l.Set(c.LogLevel); err != nil {
		return logging.Info, errors.Annotate(err, "invalid log_level '%s'", c.LogLevel)
	}
	return l, nil
}

// Validate the values. Invalid tickers are not an error here; see
// FilterTickers.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.Reason("data_dir must not be empty")
	}
	if !yahoo.ValidPeriod(c.Period) {
		return errors.Reason("invalid period '%s'; expected one of %s",
			c.Period, strings.Join(yahoo.Periods, ", "))
	}
	if !yahoo.ValidInterval(c.Interval) {
		return errors.Reason("invalid interval '%s'; expected one of %s",
			c.Interval, strings.Join(yahoo.Intervals, ", "))
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := scheduler.ParseSchedule(c.Schedule); err != nil {
		return errors.Annotate(err, "invalid schedule")
	}
	return nil
}

// HistoryPath is the run history database, or "" if disabled.
func (c *Config) HistoryPath() string {
	if c.HistoryDB == "" {
		return ""
	}
	p := ExpandHome(c.HistoryDB)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// TickersFile is the path of the tickers list in the data directory.
func (c *Config) TickersFile() string {
	return filepath.Join(c.DataDir, TickersFileName)
}
