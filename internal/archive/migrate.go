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

package archive

import (
	"database/sql"
	"fmt"
)

// migrate runs all schema migrations. Statements are idempotent.
func migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		model          TEXT NOT NULL,
		file           TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		objective      REAL,
		nodes          INTEGER NOT NULL DEFAULT 0,
		solution_count INTEGER NOT NULL DEFAULT 0,
		started_at     TEXT NOT NULL,
		duration_ms    INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

	`CREATE TABLE IF NOT EXISTS solutions (
		run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		rank      INTEGER NOT NULL,
		objective REAL NOT NULL,
		"values"  TEXT NOT NULL,
		PRIMARY KEY (run_id, rank)
	)`,
}
