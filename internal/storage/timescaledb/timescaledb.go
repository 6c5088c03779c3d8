// Package timescaledb stores snapshots in TimescaleDB (or plain Postgres)
// through gorm.
package timescaledb

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/chrissnell/tipstation/internal/database"
	"github.com/chrissnell/tipstation/internal/log"
	"github.com/chrissnell/tipstation/internal/storage"
	"github.com/chrissnell/tipstation/internal/types"
)

const sinkName = "timescaledb"

// Storage is a storage.Sink backed by a gorm Postgres connection
type Storage struct {
	TimescaleDBConn *gorm.DB
}

// New connects to the database and prepares tables. Hypertable conversion
// needs the timescaledb extension; without it the tables stay plain Postgres
// tables and a warning is logged.
func New(ctx context.Context, connectionString string, tables ...string) (*Storage, error) {
	conn, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, &storage.SinkError{Sink: sinkName, Op: "connect", Err: err}
	}
	t := &Storage{TimescaleDBConn: conn}

	timescale := true
	log.Info("creating TimescaleDB extension...")
	if err := conn.WithContext(ctx).Exec(createExtensionSQL).Error; err != nil {
		log.Warnf("could not create TimescaleDB extension, continuing with plain tables: %v", err)
		timescale = false
	}

	for _, table := range tables {
		if err := t.prepareTable(ctx, table, timescale); err != nil {
			t.Close()
			return nil, err
		}
	}
	return t, nil
}

func (t *Storage) prepareTable(ctx context.Context, table string, timescale bool) error {
	if err := storage.ValidateTableName(table); err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "create", Table: table, Err: err}
	}

	log.Infof("creating table %s...", table)
	if err := t.TimescaleDBConn.WithContext(ctx).Exec(fmt.Sprintf(createTableSQL, table)).Error; err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "create", Table: table, Err: err}
	}
	if !timescale {
		return nil
	}

	log.Infof("creating hypertable %s...", table)
	if err := t.TimescaleDBConn.WithContext(ctx).Exec(createHypertableSQL, table).Error; err != nil {
		log.Warnf("could not convert %s to a hypertable: %v", table, err)
	}
	return nil
}

// Append stores one snapshot
func (t *Storage) Append(ctx context.Context, table string, s types.Snapshot) error {
	if err := t.TimescaleDBConn.WithContext(ctx).Table(table).Create(&s).Error; err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "append", Table: table, Err: err}
	}
	return nil
}

// Query returns all snapshots in table, oldest first
func (t *Storage) Query(ctx context.Context, table string) ([]types.Snapshot, error) {
	out := []types.Snapshot{}
	if err := t.TimescaleDBConn.WithContext(ctx).Table(table).Order("time ASC").Find(&out).Error; err != nil {
		return nil, &storage.SinkError{Sink: sinkName, Op: "query", Table: table, Err: err}
	}
	return out, nil
}

// DeleteAllExcept removes every record except keepID
func (t *Storage) DeleteAllExcept(ctx context.Context, table string, keepID string) error {
	err := t.TimescaleDBConn.WithContext(ctx).Table(table).Where("id <> ?", keepID).Delete(&types.Snapshot{}).Error
	if err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "delete", Table: table, Err: err}
	}
	return nil
}

// Ping checks the connection with a round trip query
func (t *Storage) Ping(ctx context.Context) error {
	if t.TimescaleDBConn == nil {
		return &storage.SinkError{Sink: sinkName, Op: "ping", Err: fmt.Errorf("no database connection")}
	}
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "ping", Err: err}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "ping", Err: err}
	}
	var result int
	if err := t.TimescaleDBConn.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error; err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "ping", Err: err}
	}
	return nil
}

// Close releases the connection pool
func (t *Storage) Close() error {
	if t.TimescaleDBConn == nil {
		return nil
	}
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
