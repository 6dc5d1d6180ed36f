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

// Package history records the outcome of fetch and update runs.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// Kinds of runs.
const (
	KindFetch  = "fetch"
	KindUpdate = "update"
)

// Run is a single batch over a set of tickers.
type Run struct {
	ID       uuid.UUID
	Kind     string
	Started  time.Time
	Finished time.Time
	Results  map[string]bool // ticker -> success
}

// NewRun starts a run of the given kind at the given time.
func NewRun(kind string, started time.Time) *Run {
	return &Run{
		ID:      uuid.New(),
		Kind:    kind,
		Started: started,
		Results: make(map[string]bool),
	}
}

func (r *Run) tickers(ok bool) []string {
	var res []string
	for t, v := range r.Results {
		if v == ok {
			res = append(res, t)
		}
	}
	slices.Sort(res)
	return res
}

// Succeeded tickers, sorted.
func (r *Run) Succeeded() []string { return r.tickers(true) }

// Failed tickers, sorted.
func (r *Run) Failed() []string { return r.tickers(false) }

// Duration of the run; zero if it hasn't finished.
func (r *Run) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Recorder persists runs.
type Recorder interface {
	RecordRun(ctx context.Context, run *Run) error
	// Runs returns up to limit most recent runs, newest first. Non-positive
	// limit means all runs.
	Runs(ctx context.Context, limit int) ([]*Run, error)
	Close() error
}

// Noop is the Recorder used when the history is disabled.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) RecordRun(context.Context, *Run) error     { return nil }
func (Noop) Runs(context.Context, int) ([]*Run, error) { return nil, nil }
func (Noop) Close() error                              { return nil }
