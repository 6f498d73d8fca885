// Package manifest records per-phase statistics of a solver run in a
// small SQLite database, for post-run inspection and cross-checking of
// the produced files.
package manifest

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS phases (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	phase     TEXT NOT NULL,
	ply       INTEGER NOT NULL,
	positions INTEGER NOT NULL,
	bytes     INTEGER NOT NULL,
	xxhash    TEXT NOT NULL,
	millis    INTEGER NOT NULL,
	ts        TEXT NOT NULL DEFAULT (datetime('now'))
);`

// Manifest is an append-only log of completed phases.
type Manifest struct {
	db *sql.DB
}

// Open opens (or creates) the manifest database at path.
func Open(path string) (*Manifest, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest schema: %w", err)
	}
	return &Manifest{db: db}, nil
}

// RecordPhase appends one row. The checksum is stored as 16 hex digits
// since SQLite integers are signed.
func (m *Manifest) RecordPhase(phase string, ply int, positions, bytes int64, checksum uint64, elapsed time.Duration) error {
	_, err := m.db.Exec(
		`INSERT INTO phases (phase, ply, positions, bytes, xxhash, millis) VALUES (?, ?, ?, ?, ?, ?)`,
		phase, ply, positions, bytes, fmt.Sprintf("%016x", checksum), elapsed.Milliseconds())
	return err
}

// Phases returns every recorded row in insert order.
func (m *Manifest) Phases() ([]PhaseRow, error) {
	rows, err := m.db.Query(`SELECT phase, ply, positions, bytes, xxhash, millis FROM phases ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PhaseRow
	for rows.Next() {
		var r PhaseRow
		if err := rows.Scan(&r.Phase, &r.Ply, &r.Positions, &r.Bytes, &r.XXHash, &r.Millis); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PhaseRow is one recorded phase.
type PhaseRow struct {
	Phase     string
	Ply       int
	Positions int64
	Bytes     int64
	XXHash    string
	Millis    int64
}

// Close closes the database.
func (m *Manifest) Close() error { return m.db.Close() }
