package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/tipstation/internal/storage"
	"github.com/chrissnell/tipstation/internal/types"
)

func newMemory(t *testing.T, tables ...string) *Storage {
	t.Helper()
	s, err := New(context.Background(), ":memory:", tables...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func snapshotAt(minute int) types.Snapshot {
	return types.NewSnapshot(
		time.Date(2024, 6, 1, 10, minute, 0, 0, time.UTC),
		types.AmbientReading{TemperatureC: 20 + float64(minute), HumidityPct: 50, PressureHPa: 1010, AltitudeM: 27},
		1.5,
		0.18,
	)
}

func TestAppendQueryOrder(t *testing.T) {
	s := newMemory(t, "weather_archive")
	ctx := context.Background()

	for _, m := range []int{3, 1, 2} {
		require.NoError(t, s.Append(ctx, "weather_archive", snapshotAt(m)))
	}

	got, err := s.Query(ctx, "weather_archive")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, want := range []float64{21, 22, 23} {
		assert.Equal(t, want, got[i].TemperatureC)
	}
	assert.Equal(t, time.Date(2024, 6, 1, 10, 1, 0, 0, time.UTC), got[0].Timestamp)
	assert.Equal(t, 1.5, got[0].UVIndex)
	assert.Equal(t, 0.18, got[0].PrecipitationMm)
	assert.NotEmpty(t, got[0].ID)
}

func TestQueryEmptyTable(t *testing.T) {
	s := newMemory(t, "weather_archive")
	got, err := s.Query(context.Background(), "weather_archive")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDeleteAllExcept(t *testing.T) {
	s := newMemory(t, "weather_realtime")
	ctx := context.Background()

	var last types.Snapshot
	for m := 0; m < 4; m++ {
		last = snapshotAt(m)
		require.NoError(t, s.Append(ctx, "weather_realtime", last))
		require.NoError(t, s.DeleteAllExcept(ctx, "weather_realtime", last.ID))
	}

	got, err := s.Query(ctx, "weather_realtime")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, last.ID, got[0].ID)
}

func TestDuplicateIDRejected(t *testing.T) {
	s := newMemory(t, "weather_archive")
	ctx := context.Background()
	snap := snapshotAt(0)
	require.NoError(t, s.Append(ctx, "weather_archive", snap))

	err := s.Append(ctx, "weather_archive", snap)
	var sinkErr *storage.SinkError
	require.True(t, errors.As(err, &sinkErr))
	assert.Equal(t, "append", sinkErr.Op)
}

func TestInvalidTableName(t *testing.T) {
	s := newMemory(t)
	_, err := s.Query(context.Background(), "weather; DROP TABLE x")
	assert.Error(t, err)

	_, err = New(context.Background(), ":memory:", "bad-name")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	s := newMemory(t)
	assert.NoError(t, s.Ping(context.Background()))
}
