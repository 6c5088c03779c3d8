package managers

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/tipstation/internal/scheduler"
	"github.com/chrissnell/tipstation/internal/storage"
	"github.com/chrissnell/tipstation/internal/storage/mqtt"
	"github.com/chrissnell/tipstation/internal/storage/sqlite"
	"github.com/chrissnell/tipstation/internal/storage/timescaledb"
	"github.com/chrissnell/tipstation/pkg/config"
)

// StorageManager holds the configured sinks and publishers
type StorageManager struct {
	Realtime   *scheduler.Target
	Archive    *scheduler.Target
	Publishers []storage.Publisher
	Checkers   map[string]storage.HealthChecker

	engines   map[string]storage.Sink
	closeOnce sync.Once
	closeErr  error
}

// openFunc opens a sink on connectionString, preparing every table in tables
type openFunc func(ctx context.Context, connectionString string, tables ...string) (storage.Sink, error)

var engines = map[string]openFunc{
	config.SinkTimescaleDB: func(ctx context.Context, conn string, tables ...string) (storage.Sink, error) {
		return timescaledb.New(ctx, conn, tables...)
	},
	config.SinkSQLite: func(ctx context.Context, conn string, tables ...string) (storage.Sink, error) {
		return sqlite.New(ctx, conn, tables...)
	},
}

// NewStorageManager opens every sink and publisher named in cfg. A real-time
// and an archive sink of the same type and connection string share one
// connection.
func NewStorageManager(ctx context.Context, cfg *config.StorageData, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := &StorageManager{
		Checkers: make(map[string]storage.HealthChecker),
		engines:  make(map[string]storage.Sink),
	}

	roles := []struct {
		name string
		sink *config.SinkData
		dst  **scheduler.Target
	}{
		{"realtime", cfg.Realtime, &s.Realtime},
		{"archive", cfg.Archive, &s.Archive},
	}

	tables := make(map[string][]string)
	for _, r := range roles {
		if r.sink == nil {
			continue
		}
		key := engineKey(r.sink)
		tables[key] = append(tables[key], r.sink.Table)
	}

	for _, r := range roles {
		if r.sink == nil {
			continue
		}
		key := engineKey(r.sink)
		sink, ok := s.engines[key]
		if !ok {
			var err error
			sink, err = s.AddEngine(ctx, r.sink.Type, r.sink.ConnectionString, tables[key]...)
			if err != nil {
				return nil, multierr.Append(fmt.Errorf("could not add %s storage backend for %s: %w", r.sink.Type, r.name, err), s.Close())
			}
			s.engines[key] = sink
		}
		s.Checkers[r.name] = storage.SinkChecker(r.name, sink)
		*r.dst = &scheduler.Target{Sink: sink, Table: r.sink.Table}
		logger.Infof("%s snapshots go to %s table %s", r.name, r.sink.Type, r.sink.Table)
	}

	if cfg.MQTT != nil {
		p := mqtt.New(cfg.MQTT, logger)
		s.Publishers = append(s.Publishers, p)
		s.Checkers["mqtt"] = p
		logger.Infof("publishing snapshots to MQTT topic %s", cfg.MQTT.Topic)
	}

	return s, nil
}

// AddEngine opens a sink of the given type
func (s *StorageManager) AddEngine(ctx context.Context, sinkType, connectionString string, tables ...string) (storage.Sink, error) {
	open, ok := engines[sinkType]
	if !ok {
		return nil, fmt.Errorf("unknown storage type %q", sinkType)
	}
	return open(ctx, connectionString, tables...)
}

// Close releases every sink and publisher once
func (s *StorageManager) Close() error {
	s.closeOnce.Do(func() {
		for _, p := range s.Publishers {
			s.closeErr = multierr.Append(s.closeErr, p.Close())
		}
		for _, e := range s.engines {
			s.closeErr = multierr.Append(s.closeErr, e.Close())
		}
	})
	return s.closeErr
}

func engineKey(sink *config.SinkData) string {
	return sink.Type + "|" + sink.ConnectionString
}
