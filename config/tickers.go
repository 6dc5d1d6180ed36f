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

package config

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"golang.org/x/exp/slices"
)

// MaxTickerLength is the longest accepted ticker symbol.
const MaxTickerLength = 10

func tickerChar(r rune) bool {
	switch {
	case 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return true
	case r == '.', r == '-', r == '^':
		return true
	}
	return false
}

// ValidateTicker normalizes the ticker to upper case and checks that it is 1
// to MaxTickerLength characters of letters, digits, '.', '-' and '^'.
func ValidateTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if len(t) == 0 || len(t) > MaxTickerLength {
		return "", errors.Reason("invalid ticker '%s': must be 1 to %d characters",
			ticker, MaxTickerLength)
	}
	for _, r := range t {
		if !tickerChar(r) {
			return "", errors.Reason("invalid ticker '%s': bad character %q", ticker, r)
		}
	}
	return t, nil
}

// normalize validates the tickers, then sorts and de-duplicates them.
func normalize(tickers []string) ([]string, error) {
	res := make([]string, 0, len(tickers))
	for _, t := range tickers {
		v, err := ValidateTicker(t)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	slices.Sort(res)
	return slices.Compact(res), nil
}

// ParseTickers splits a comma separated list of tickers.
func ParseTickers(s string) ([]string, error) {
	var tickers []string
	for _, t := range strings.Split(s, ",") {
		if strings.TrimSpace(t) != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		return nil, errors.Reason("no tickers in '%s'", s)
	}
	return normalize(tickers)
}

// FilterTickers normalizes the valid tickers and drops the invalid ones with a
// warning. The result is sorted and unique.
func FilterTickers(ctx context.Context, tickers []string) []string {
	res := make([]string, 0, len(tickers))
	for _, t := range tickers {
		v, err := ValidateTicker(t)
		if err != nil {
			logging.Warningf(ctx, "skipping %s", err.Error())
			continue
		}
		res = append(res, v)
	}
	slices.Sort(res)
	return slices.Compact(res)
}

// LoadTickers reads one ticker per line, ignoring blank lines and comments
// starting with '#'. Invalid tickers are skipped with a warning.
func LoadTickers(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open tickers file '%s'", path)
	}
	defer f.Close()

	var tickers []string
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		s := scanner.Text()
		if i := strings.Index(s, "#"); i >= 0 {
			s = s[:i]
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		v, err := ValidateTicker(s)
		if err != nil {
			logging.Warningf(ctx, "%s:%d: skipping %s", path, line, err.Error())
			continue
		}
		tickers = append(tickers, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Annotate(err, "failed to read '%s'", path)
	}
	slices.Sort(tickers)
	return slices.Compact(tickers), nil
}

// SaveTickers writes the sorted unique tickers one per line.
func SaveTickers(path string, tickers []string) error {
	ts, err := normalize(tickers)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return errors.Annotate(err, "failed to create directory for '%s'", path)
	}
	content := strings.Join(ts, "\n")
	if len(ts) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.Annotate(err, "failed to write tickers file '%s'", path)
	}
	return nil
}
