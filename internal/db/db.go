// Package db keeps a local log of published readings in SQLite.
package db

import (
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/dougalf/lolat/internal/monitoring"
	"github.com/dougalf/lolat/internal/timeutil"
)

// ErrNoReadings is returned by LatestReading when the log is empty.
var ErrNoReadings = errors.New("db: no readings recorded")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

type DB struct {
	*sql.DB

	path  string
	runID string
	clock timeutil.Clock
}

// Reading is one row of the reading log.
type Reading struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Reading    int64     `json:"reading"`
	Volume     int64     `json:"volume"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewDB opens the database at path and brings its schema up to date.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDB opens the database without touching its schema. The migrate
// subcommand uses it so that it alone decides which migrations run.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers anyway, and PRAGMAs are per connection.
	sqlDB.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return &DB{
		DB:    sqlDB,
		path:  path,
		runID: uuid.NewString(),
		clock: timeutil.RealClock{},
	}, nil
}

// RunID identifies this process's rows in the log.
func (db *DB) RunID() string { return db.runID }

// SetClock replaces the clock used to timestamp readings.
func (db *DB) SetClock(c timeutil.Clock) { db.clock = c }

// RecordReading appends a published reading and its volume to the log.
func (db *DB) RecordReading(ctx context.Context, reading, volume int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO readings (run_id, reading, volume, recorded_at) VALUES (?, ?, ?, ?)`,
		db.runID, reading, volume, db.clock.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record reading: %w", err)
	}
	return nil
}

// RecentReadings returns up to limit readings, newest first.
func (db *DB) RecentReadings(ctx context.Context, limit int) ([]Reading, error) {
	if limit <= 0 {
		return []Reading{}, nil
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, run_id, reading, volume, recorded_at
		FROM readings
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}

// LatestReading returns the most recent reading.
func (db *DB) LatestReading(ctx context.Context) (Reading, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, run_id, reading, volume, recorded_at
		FROM readings
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`)
	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Reading{}, ErrNoReadings
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(s scanner) (Reading, error) {
	var (
		r  Reading
		ns int64
	)
	if err := s.Scan(&r.ID, &r.RunID, &r.Reading, &r.Volume, &ns); err != nil {
		return Reading{}, err
	}
	r.RecordedAt = time.Unix(0, ns).UTC()
	return r, nil
}

// AttachAdminRoutes mounts the SQL console and a backup download under
// /debug/ on mux.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "LolaT readings",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the reading log now", http.HandlerFunc(db.serveBackup))
	return nil
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("lolat-backup-%d.db", db.clock.Now().Unix()))
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			monitoring.Logf("db: failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		monitoring.Logf("db: failed to stream backup: %v", err)
	}
}
