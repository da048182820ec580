// Package storage keeps the history of version checks and release runs in a
// local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS version_checks (
  id              INTEGER PRIMARY KEY,
  checked_at      DATETIME NOT NULL,
  package         TEXT NOT NULL,
  current_version TEXT,
  latest_version  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checks_time ON version_checks(checked_at);
CREATE TABLE IF NOT EXISTS releases (
  id          INTEGER PRIMARY KEY,
  started_at  DATETIME NOT NULL,
  finished_at DATETIME NOT NULL,
  version     TEXT,
  status      TEXT NOT NULL CHECK (status IN ('up-to-date','released','failed')),
  message     TEXT
);
CREATE INDEX IF NOT EXISTS idx_releases_time ON releases(started_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// RecordCheck stores c and returns its id. A zero CheckedAt means now.
func (d *DB) RecordCheck(ctx context.Context, c Check) (int64, error) {
	if c.LatestVersion == "" {
		return 0, errors.New("latest version is required")
	}
	if c.CheckedAt.IsZero() {
		c.CheckedAt = time.Now()
	}
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO version_checks(checked_at, package, current_version, latest_version) VALUES(?,?,?,?)`,
		c.CheckedAt.UTC().Format(timeLayout), c.Package, nullIfEmpty(c.CurrentVersion), c.LatestVersion)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordRelease stores r in a single transaction and returns its id.
func (d *DB) RecordRelease(ctx context.Context, r Release) (id int64, err error) {
	switch r.Status {
	case StatusUpToDate, StatusReleased, StatusFailed:
	default:
		return 0, fmt.Errorf("unknown release status %q", r.Status)
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO releases(started_at, finished_at, version, status, message) VALUES(?,?,?,?,?)`,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
		nullIfEmpty(r.Version), r.Status, nullIfEmpty(r.Message))
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListChecks returns the most recent checks, newest first.
func (d *DB) ListChecks(ctx context.Context, limit int) ([]Check, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, checked_at, package, current_version, latest_version FROM version_checks ORDER BY checked_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Check
	for rows.Next() {
		var c Check
		var checkedAt string
		var current sql.NullString
		if err := rows.Scan(&c.ID, &checkedAt, &c.Package, &current, &c.LatestVersion); err != nil {
			return nil, err
		}
		c.CheckedAt = parseTime(checkedAt)
		c.CurrentVersion = current.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListReleases returns the most recent release runs, newest first.
func (d *DB) ListReleases(ctx context.Context, limit int) ([]Release, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, started_at, finished_at, version, status, message FROM releases ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Release
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LastRelease returns the newest successful release, or nil when nothing was
// released yet.
func (d *DB) LastRelease(ctx context.Context) (*Release, error) {
	row := d.sql.QueryRowContext(ctx,
		"SELECT id, started_at, finished_at, version, status, message FROM releases WHERE status = ? ORDER BY started_at DESC, id DESC LIMIT 1", StatusReleased)
	r, err := scanRelease(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRelease(s scanner) (Release, error) {
	var r Release
	var started, finished string
	var version, message sql.NullString
	if err := s.Scan(&r.ID, &started, &finished, &version, &r.Status, &message); err != nil {
		return Release{}, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	r.Version = version.String
	r.Message = message.String
	return r, nil
}

// parseTime accepts RFC3339 and the SQLite CURRENT_TIMESTAMP format.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
