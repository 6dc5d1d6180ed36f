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
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id       TEXT PRIMARY KEY,
		kind     TEXT NOT NULL,
		started  INTEGER NOT NULL,
		finished INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started)`,
	`CREATE TABLE IF NOT EXISTS run_results (
		run_id  TEXT NOT NULL REFERENCES runs(id),
		ticker  TEXT NOT NULL,
		success INTEGER NOT NULL,
		PRIMARY KEY (run_id, ticker)
	)`,
}

// SQLite stores runs in a SQLite database.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

var _ Recorder = &SQLite{}

// OpenSQLite opens or creates the database at path and creates the tables.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open %s", path)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Annotate(err, "failed to set WAL mode")
	}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			db.Close()
			return nil, errors.Annotate(err, "migration failed")
		}
	}
	logging.Debugf(ctx, "opened run history at %s", path)
	return &SQLite{db: db}, nil
}

// RecordRun inserts the run and its per-ticker results in one transaction.
func (s *SQLite) RecordRun(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, kind, started, finished) VALUES (?,?,?,?)`,
		run.ID.String(), run.Kind, run.Started.UnixNano(), run.Finished.UnixNano())
	if err != nil {
		return errors.Annotate(err, "failed to insert run %s", run.ID)
	}
	for ticker, ok := range run.Results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_results (run_id, ticker, success) VALUES (?,?,?)`,
			run.ID.String(), ticker, ok)
		if err != nil {
			return errors.Annotate(err, "failed to insert result for %s", ticker)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Annotate(err, "failed to commit run %s", run.ID)
	}
	return nil
}

// Runs returns the most recent runs first.
func (s *SQLite) Runs(ctx context.Context, limit int) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, started, finished FROM runs
		 ORDER BY started DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Annotate(err, "failed to query runs")
	}
	var runs []*Run
	for rows.Next() {
		var id string
		var started, finished int64
		r := &Run{Results: make(map[string]bool)}
		if err := rows.Scan(&id, &r.Kind, &started, &finished); err != nil {
			rows.Close()
			return nil, errors.Annotate(err, "failed to read a run")
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return nil, errors.Annotate(err, "bad run ID '%s'", id)
		}
		r.Started = time.Unix(0, started).UTC()
		r.Finished = time.Unix(0, finished).UTC()
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Annotate(err, "failed to query runs")
	}
	for _, r := range runs {
		if err := s.loadResults(ctx, r); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *SQLite) loadResults(ctx context.Context, r *Run) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, success FROM run_results WHERE run_id = ?`, r.ID.String())
	if err != nil {
		return errors.Annotate(err, "failed to query results of %s", r.ID)
	}
	defer rows.Close()
	for rows.Next() {
		var ticker string
		var ok bool
		if err := rows.Scan(&ticker, &ok); err != nil {
			return errors.Annotate(err, "failed to read a result of %s", r.ID)
		}
		r.Results[ticker] = ok
	}
	return rows.Err()
}

// Close the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
