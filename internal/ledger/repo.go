package ledger

import (
	"fmt"
	"time"

	"github.com/starford/wikisync/internal/publish"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// RunRow is one row of the runs table.
type RunRow struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Trigger    string    `json:"trigger"`
	Status     string    `json:"status"`
	Published  int       `json:"published"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Assets     int       `json:"assets"`
	Deleted    int       `json:"deleted"`
	Warnings   int       `json:"warnings"`
	Error      string    `json:"error,omitempty"`
}

// PublishedRow is the last known publication of a vault note.
type PublishedRow struct {
	Path      string    `json:"path"`
	Slug      string    `json:"slug"`
	RunID     int64     `json:"run_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordRun stores a completed run and replaces the published-notes table
// with its mapping, within one transaction.
func (db *DB) RecordRun(trigger string, rep *publish.Report) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`
		INSERT INTO runs (started_at, finished_at, cause, status, published, skipped, failed, assets, deleted, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rep.StartedAt.UTC(), rep.FinishedAt.UTC(), trigger, StatusOK,
		len(rep.Published), len(rep.Skipped), rep.Failures(), len(rep.Assets), len(rep.Deleted), len(rep.Warnings))
	if err != nil {
		return 0, fmt.Errorf("ledger: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ledger: run id: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM published`); err != nil {
		return 0, fmt.Errorf("ledger: clear published: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO published (path, slug, run_id, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("ledger: prepare published insert: %w", err)
	}
	defer stmt.Close()
	for path, slug := range rep.Mapping {
		if _, err := stmt.Exec(path, slug, id, rep.FinishedAt.UTC()); err != nil {
			return 0, fmt.Errorf("ledger: insert published: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ledger: commit: %w", err)
	}
	return id, nil
}

// RecordFailure stores a run that aborted with a fatal error.
func (db *DB) RecordFailure(trigger string, started, finished time.Time, runErr error) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO runs (started_at, finished_at, cause, status, error)
		VALUES (?, ?, ?, ?, ?)
	`, started.UTC(), finished.UTC(), trigger, StatusFailed, runErr.Error())
	if err != nil {
		return 0, fmt.Errorf("ledger: insert failed run: %w", err)
	}
	return res.LastInsertId()
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, started_at, finished_at, cause, status, published, skipped, failed, assets, deleted, warnings, error
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Trigger, &r.Status,
			&r.Published, &r.Skipped, &r.Failed, &r.Assets, &r.Deleted, &r.Warnings, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Published returns every note published by the latest successful run.
func (db *DB) Published() ([]PublishedRow, error) {
	rows, err := db.conn.Query(`SELECT path, slug, run_id, updated_at FROM published ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("ledger: published: %w", err)
	}
	defer rows.Close()

	var out []PublishedRow
	for rows.Next() {
		var p PublishedRow
		if err := rows.Scan(&p.Path, &p.Slug, &p.RunID, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SlugOwners returns the vault paths currently published under slug. More
// than one owner means the notes collided.
func (db *DB) SlugOwners(slug string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT path FROM published WHERE slug = ? ORDER BY path`, slug)
	if err != nil {
		return nil, fmt.Errorf("ledger: slug owners: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
