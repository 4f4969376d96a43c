/*
Copyright © 2015-2022 Leo Antunes <leo@costela.net>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package archive keeps a history of solver runs in a SQLite database.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one archived solve.
type Run struct {
	ID    string
	Model string
	File  string
	// Status is the textual solve status, e.g. "Optimal".
	Status string
	// Objective is NaN when the run produced no solution.
	Objective float64
	Nodes     int
	StartedAt time.Time
	Duration  time.Duration

	// Solutions are the pool entries of the run, best first. List leaves
	// them empty; use Store.Solutions.
	Solutions []Solution
	// SolutionCount is the number of archived pool entries.
	SolutionCount int
}

// Solution is an archived pool entry.
type Solution struct {
	Rank      int
	Objective float64
	Values    []float64
}

type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the archive at path. ":memory:" opens a
// private in-memory archive.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	// every connection to ":memory:" would see its own database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run and its solutions in one transaction. An empty ID is
// replaced by a fresh UUID, which is set on run only once the transaction
// commits; the ID used is returned.
func (s *Store) Record(ctx context.Context, run *Run) (string, error) {
	id := run.ID
	if id == "" {
		id = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, model, file, status, objective, nodes, solution_count, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		run.Model,
		run.File,
		run.Status,
		nullFloat(run.Objective),
		run.Nodes,
		len(run.Solutions),
		run.StartedAt.UTC().Format(timeLayout),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for i, sol := range run.Solutions {
		values, err := json.Marshal(sol.Values)
		if err != nil {
			return "", fmt.Errorf("encoding solution %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO solutions (run_id, rank, objective, "values")
			VALUES (?, ?, ?, ?)`, id, i, sol.Objective, string(values))
		if err != nil {
			return "", fmt.Errorf("inserting solution %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	committed = true
	run.ID = id
	run.SolutionCount = len(run.Solutions)

	return id, nil
}

// List returns the most recent runs, newest first. A limit below 1 returns
// all runs.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit < 1 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, model, file, status, objective, nodes, solution_count, started_at, duration_ms
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			r         Run
			objective sql.NullFloat64
			started   string
			ms        int64
		)
		if err := rows.Scan(&r.ID, &r.Model, &r.File, &r.Status, &objective, &r.Nodes, &r.SolutionCount, &started, &ms); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		r.Objective = math.NaN()
		if objective.Valid {
			r.Objective = objective.Float64
		}
		r.StartedAt, err = time.Parse(timeLayout, started)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Solutions returns the archived pool of a run, best first.
func (s *Store) Solutions(ctx context.Context, runID string) ([]Solution, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT rank, objective, "values"
		FROM solutions WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing solutions: %w", err)
	}
	defer rows.Close()

	var out []Solution
	for rows.Next() {
		var (
			sol    Solution
			values string
		)
		if err := rows.Scan(&sol.Rank, &sol.Objective, &values); err != nil {
			return nil, fmt.Errorf("scanning solution row: %w", err)
		}
		if err := json.Unmarshal([]byte(values), &sol.Values); err != nil {
			return nil, fmt.Errorf("decoding solution %d: %w", sol.Rank, err)
		}
		out = append(out, sol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating solutions: %w", err)
	}
	return out, nil
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
