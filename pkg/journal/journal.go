// Package journal records per-photo geotagging outcomes in SQLite so that
// interrupted runs can resume.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	_ "modernc.org/sqlite"
)

// Status values.
const (
	Tagged  = "tagged"
	Skipped = "skipped"
	Failed  = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS photos (
	path       TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	latitude   REAL,
	longitude  REAL,
	altitude   REAL,
	timestamp  TEXT,
	error      TEXT,
	updated_at INTEGER NOT NULL
)`

// Entry is the last recorded outcome for one photo.
type Entry struct {
	Path      string
	Status    string
	Latitude  float64
	Longitude float64
	Altitude  float64
	Timestamp string
	Error     string
	UpdatedAt time.Time
}

// Journal is a SQLite-backed outcome log.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection serializes writers from concurrent workers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	klog.V(1).Infof("journal opened at %s", path)
	return &Journal{db: db}, nil
}

// Record stores e, replacing any earlier outcome for the same path.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO photos (path, status, latitude, longitude, altitude, timestamp, error, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	status = excluded.status,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	altitude = excluded.altitude,
	timestamp = excluded.timestamp,
	error = excluded.error,
	updated_at = excluded.updated_at`,
		e.Path, e.Status, e.Latitude, e.Longitude, e.Altitude, e.Timestamp, e.Error, e.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Path, err)
	}
	return nil
}

// Tagged reports whether path was already tagged successfully.
func (j *Journal) Tagged(ctx context.Context, path string) (bool, error) {
	var status string
	err := j.db.QueryRowContext(ctx, `SELECT status FROM photos WHERE path = ?`, path).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", path, err)
	}
	return status == Tagged, nil
}

// Entries returns all recorded outcomes ordered by path.
func (j *Journal) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT path, status, latitude, longitude, altitude, timestamp, error, updated_at
FROM photos ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var es []Entry
	for rows.Next() {
		var (
			e  Entry
			ns int64
		)
		if err := rows.Scan(&e.Path, &e.Status, &e.Latitude, &e.Longitude, &e.Altitude, &e.Timestamp, &e.Error, &ns); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.UpdatedAt = time.Unix(0, ns)
		es = append(es, e)
	}
	return es, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
