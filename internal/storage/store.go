// Package storage persists station readings to a local SQLite file.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mkulagin/groundstation/internal/telemetry"
)

// Store is an append-only log of readings backed by a single SQLite file.
// The connection is opened lazily and the schema is created on first use, so
// both Append and Recent work against a fresh database file. One shared
// connection in WAL mode serves reads and writes, which keeps read-after-write
// ordering trivial under the single-writer discipline.
type Store struct {
	dbPath string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store for the given database path.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"))
		if err != nil {
			s.dbErr = fmt.Errorf("opening connection: %w", err)
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.db = db
	})

	return s.db, s.dbErr
}

// Append durably persists one reading. The insert is committed before the
// call returns; readings are never updated or deleted afterwards.
func (s *Store) Append(ctx context.Context, r *telemetry.Reading) (err error) {
	db, err := s.getDB()
	if err != nil {
		return fmt.Errorf("getting connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	data := toReadingData(r)
	if _, err = stmt.ExecContext(
		ctx,
		data.Timestamp,
		data.Latitude,
		data.Longitude,
		data.Temperature,
		data.Humidity,
		data.RadiationCount,
	); err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	return nil
}

// Recent returns up to n readings ordered by descending timestamp. Readings
// sharing a timestamp are returned in descending insertion order, so repeated
// calls against unchanged data yield the same sequence.
func (s *Store) Recent(ctx context.Context, n int) (readings []telemetry.Reading, err error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid limit %d", n)
	}

	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectRecentSQL, n)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data readingData
		if err = rows.Scan(
			&data.Timestamp,
			&data.Latitude,
			&data.Longitude,
			&data.Temperature,
			&data.Humidity,
			&data.RadiationCount,
		); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}

		var r *telemetry.Reading
		if r, err = fromReadingData(&data); err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}

	return readings, nil
}

// DB exposes the underlying connection, primarily for health checks.
func (s *Store) DB() (*sql.DB, error) {
	return s.getDB()
}

// Close closes the database connection
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
			s.db = nil
		}
	})

	return s.closeErr
}
