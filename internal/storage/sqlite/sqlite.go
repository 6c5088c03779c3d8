// Package sqlite stores snapshots in a local SQLite database file, for
// stations without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/tipstation/internal/log"
	"github.com/chrissnell/tipstation/internal/storage"
	"github.com/chrissnell/tipstation/internal/types"
)

const sinkName = "sqlite"

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	time INTEGER NOT NULL,
	temperature REAL NOT NULL,
	humidity REAL NOT NULL,
	pressure REAL NOT NULL,
	altitude REAL NOT NULL,
	uv_index REAL NOT NULL,
	precipitation REAL NOT NULL
);`

const createIndexSQL = `CREATE INDEX IF NOT EXISTS %s_time_idx ON %s (time);`

// Storage is a storage.Sink backed by modernc's pure Go SQLite driver.
// Timestamps are stored as Unix nanoseconds in UTC.
type Storage struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dsn and prepares tables
func New(ctx context.Context, dsn string, tables ...string) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &storage.SinkError{Sink: sinkName, Op: "open", Err: err}
	}
	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive for the life of the pool.
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}
	for _, table := range tables {
		if err := s.createTable(ctx, table); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Storage) createTable(ctx context.Context, table string) error {
	if err := storage.ValidateTableName(table); err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "create", Table: table, Err: err}
	}
	log.Infof("creating SQLite table %s...", table)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(createTableSQL, table)); err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "create", Table: table, Err: err}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(createIndexSQL, table, table)); err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "create", Table: table, Err: err}
	}
	return nil
}

// Append stores one snapshot
func (s *Storage) Append(ctx context.Context, table string, snap types.Snapshot) error {
	if err := storage.ValidateTableName(table); err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "append", Table: table, Err: err}
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, time, temperature, humidity, pressure, altitude, uv_index, precipitation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, table),
		snap.ID, snap.Timestamp.UTC().UnixNano(), snap.TemperatureC, snap.HumidityPct,
		snap.PressureHPa, snap.AltitudeM, snap.UVIndex, snap.PrecipitationMm,
	)
	if err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "append", Table: table, Err: err}
	}
	return nil
}

// Query returns all snapshots in table, oldest first
func (s *Storage) Query(ctx context.Context, table string) ([]types.Snapshot, error) {
	if err := storage.ValidateTableName(table); err != nil {
		return nil, &storage.SinkError{Sink: sinkName, Op: "query", Table: table, Err: err}
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, time, temperature, humidity, pressure, altitude, uv_index, precipitation
		FROM %s ORDER BY time ASC`, table))
	if err != nil {
		return nil, &storage.SinkError{Sink: sinkName, Op: "query", Table: table, Err: err}
	}
	defer rows.Close()

	out := []types.Snapshot{}
	for rows.Next() {
		var snap types.Snapshot
		var ns int64
		if err := rows.Scan(&snap.ID, &ns, &snap.TemperatureC, &snap.HumidityPct,
			&snap.PressureHPa, &snap.AltitudeM, &snap.UVIndex, &snap.PrecipitationMm); err != nil {
			return nil, &storage.SinkError{Sink: sinkName, Op: "query", Table: table, Err: err}
		}
		snap.Timestamp = time.Unix(0, ns).UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.SinkError{Sink: sinkName, Op: "query", Table: table, Err: err}
	}
	return out, nil
}

// DeleteAllExcept removes every record except keepID
func (s *Storage) DeleteAllExcept(ctx context.Context, table string, keepID string) error {
	if err := storage.ValidateTableName(table); err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "delete", Table: table, Err: err}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id <> ?`, table), keepID); err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "delete", Table: table, Err: err}
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "ping", Err: err}
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
