package managers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/tipstation/internal/types"
	"github.com/chrissnell/tipstation/pkg/config"
)

func TestStorageManagerSharesConnection(t *testing.T) {
	ctx := context.Background()
	cfg := &config.StorageData{
		Realtime: &config.SinkData{Type: config.SinkSQLite, ConnectionString: ":memory:", Table: "weather_realtime"},
		Archive:  &config.SinkData{Type: config.SinkSQLite, ConnectionString: ":memory:", Table: "weather_archive"},
	}

	sm, err := NewStorageManager(ctx, cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer sm.Close()

	require.NotNil(t, sm.Realtime)
	require.NotNil(t, sm.Archive)
	assert.Same(t, sm.Realtime.Sink, sm.Archive.Sink)
	assert.Contains(t, sm.Checkers, "realtime")
	assert.Contains(t, sm.Checkers, "archive")

	snap := types.NewSnapshot(time.Now(), types.AmbientReading{TemperatureC: 20}, 0, 0)
	require.NoError(t, sm.Archive.Sink.Append(ctx, sm.Archive.Table, snap))

	got, err := sm.Archive.Sink.Query(ctx, sm.Archive.Table)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = sm.Realtime.Sink.Query(ctx, sm.Realtime.Table)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStorageManagerSeparateFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.StorageData{
		Realtime: &config.SinkData{Type: config.SinkSQLite, ConnectionString: filepath.Join(dir, "rt.db"), Table: "weather_realtime"},
		Archive:  &config.SinkData{Type: config.SinkSQLite, ConnectionString: filepath.Join(dir, "archive.db"), Table: "weather_archive"},
	}

	sm, err := NewStorageManager(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.NotSame(t, sm.Realtime.Sink, sm.Archive.Sink)
	assert.NoError(t, sm.Close())
	assert.NoError(t, sm.Close(), "second close is a no-op")
}

func TestStorageManagerNothingConfigured(t *testing.T) {
	sm, err := NewStorageManager(context.Background(), &config.StorageData{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Nil(t, sm.Realtime)
	assert.Nil(t, sm.Archive)
	assert.Empty(t, sm.Publishers)
	assert.NoError(t, sm.Close())
}

func TestStorageManagerUnknownEngine(t *testing.T) {
	sm := &StorageManager{}
	_, err := sm.AddEngine(context.Background(), "influxdb", "http://localhost:8086")
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestSensorManagerSimulator(t *testing.T) {
	cfg := &config.SensorData{
		Driver:              "simulator",
		RainChannel:         0,
		UVChannel:           1,
		SeaLevelPressureHPa: 1013.25,
		ReadTimeout:         time.Second,
	}

	m, err := NewSensorManager(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)

	for _, g := range m.Guards() {
		assert.False(t, g.Ready(), "%s must initialize lazily", g.Name())
	}

	ctx := context.Background()
	_, err = m.Ambient.Read(ctx)
	require.NoError(t, err)
	_, err = m.RainReader().ReadVoltage(ctx)
	require.NoError(t, err)

	for _, g := range m.Guards() {
		assert.True(t, g.Ready(), g.Name())
	}
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestSensorManagerUnknownDriver(t *testing.T) {
	_, err := NewSensorManager(&config.SensorData{Driver: "gpio"}, zap.NewNop().Sugar())
	assert.Error(t, err)
}
