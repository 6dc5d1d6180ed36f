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

// Package scheduler runs a job periodically on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// Schedules have a seconds field: "sec min hour dom month dow". Descriptors
// like "@daily" and "@every 1h" are also accepted.
var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule checks the cron spec.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Annotate(err, "bad cron spec '%s'", spec)
	}
	return s, nil
}

// cronLogger sends cron's own messages to the context logger.
type cronLogger struct {
	ctx context.Context
}

var _ cron.Logger = cronLogger{}

func keyValues(kv []interface{}) string {
	var parts []string
	for i := 0; i+1 < len(kv); i += 2 {
		v := kv[i+1]
		if t, ok := v.(time.Time); ok {
			v = t.Format(time.RFC3339)
		}
		parts = append(parts, fmt.Sprintf("%v=%v", kv[i], v))
	}
	return strings.Join(parts, " ")
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debugf(l.ctx, "cron: %s %s", msg, keyValues(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Errorf(l.ctx, "cron: %s: %s %s", msg, err.Error(), keyValues(keysAndValues))
}

// Scheduler runs a single job. A run which starts while the previous one is
// still going is skipped, and a panicking run is logged and recovered.
type Scheduler struct {
	cron *cron.Cron
	id   cron.EntryID
}

// New schedules the job on the cron spec. The job receives ctx. Call Start to
// begin running it.
func New(ctx context.Context, spec string, job func(context.Context)) (*Scheduler, error) {
	logger := cronLogger{ctx: ctx}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
	)
	id, err := c.AddFunc(spec, func() { job(ctx) })
	if err != nil {
		return nil, errors.Annotate(err, "failed to schedule job on '%s'", spec)
	}
	return &Scheduler{cron: c, id: id}, nil
}

// Start running the job in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop the scheduler and wait for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNow runs the job synchronously, unless it is already running.
func (s *Scheduler) RunNow() {
	s.cron.Entry(s.id).WrappedJob.Run()
}

// Next is the time of the next scheduled run; zero if not started.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.id).Next
}
