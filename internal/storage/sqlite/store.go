// Package sqlite keeps a history of scan results in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zabe-dev/smuggler/internal/scanner"
)

// Store records scan results. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Finding is a vulnerable scan read back from the history.
type Finding struct {
	URL          string
	Host         string
	Port         int
	VulnType     string
	Confidence   string
	Details      []string
	ExploitFiles []string
	ScannedAt    time.Time
}

// New opens (creating if needed) the database at path and migrates it.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS scans (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	url         TEXT NOT NULL,
	host        TEXT NOT NULL,
	port        INTEGER NOT NULL,
	endpoint    TEXT NOT NULL,
	state       TEXT NOT NULL,
	vulnerable  INTEGER NOT NULL,
	vuln_type   TEXT,
	confidence  TEXT,
	details     TEXT,
	error       TEXT,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_host ON scans (host);
CREATE INDEX IF NOT EXISTS idx_scans_vulnerable_started_at ON scans (vulnerable, started_at DESC);

CREATE TABLE IF NOT EXISTS exploits (
	scan_id INTEGER NOT NULL,
	path    TEXT NOT NULL,
	FOREIGN KEY(scan_id) REFERENCES scans(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_exploits_scan_id ON exploits (scan_id);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveResult stores one completed scan and its exploit files.
func (s *Store) SaveResult(ctx context.Context, r *scanner.ScanResult) error {
	details, err := json.Marshal(r.Details)
	if err != nil {
		return fmt.Errorf("encoding details: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
INSERT INTO scans (url, host, port, endpoint, state, vulnerable, vuln_type, confidence, details, error, started_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, query,
		r.URL, r.Host, r.Port, r.Endpoint, string(r.State), r.Vulnerable,
		string(r.VulnType), string(r.Confidence), string(details), r.Error,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read scan id: %w", err)
	}

	for _, path := range r.ExploitFiles {
		if _, err := tx.ExecContext(ctx, `INSERT INTO exploits (scan_id, path) VALUES (?, ?)`, id, path); err != nil {
			return fmt.Errorf("failed to insert exploit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListVulnerable returns every vulnerable scan, newest first.
func (s *Store) ListVulnerable(ctx context.Context) ([]Finding, error) {
	query := `
SELECT id, url, host, port, vuln_type, confidence, details, started_at
FROM scans WHERE vulnerable = 1
ORDER BY started_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}

	var (
		findings []Finding
		ids      []int64
	)
	for rows.Next() {
		var (
			f         Finding
			id        int64
			details   sql.NullString
			startedAt string
		)
		if err := rows.Scan(&id, &f.URL, &f.Host, &f.Port, &f.VulnType, &f.Confidence, &details, &startedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if details.Valid && details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &f.Details)
		}
		f.ScannedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		findings = append(findings, f)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i, id := range ids {
		files, err := s.exploitFiles(ctx, id)
		if err != nil {
			return nil, err
		}
		findings[i].ExploitFiles = files
	}
	return findings, nil
}

func (s *Store) exploitFiles(ctx context.Context, scanID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM exploits WHERE scan_id = ? ORDER BY rowid`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exploits: %w", err)
	}
	defer rows.Close()
	var files []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		files = append(files, p)
	}
	return files, rows.Err()
}
