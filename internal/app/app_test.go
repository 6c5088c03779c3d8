package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/tipstation/pkg/config"
)

func simulatorConfig(mode string) *config.ConfigData {
	cfg := &config.ConfigData{
		Station: config.StationData{Mode: mode, Timezone: "UTC"},
		Sensors: config.SensorData{Driver: "simulator", RainChannel: 0, UVChannel: 1},
	}
	if mode == config.ModePush {
		cfg.Storage.Realtime = &config.SinkData{Type: config.SinkSQLite, ConnectionString: ":memory:"}
		cfg.Storage.Archive = &config.SinkData{Type: config.SinkSQLite, ConnectionString: ":memory:"}
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestCheckTakesOneSample(t *testing.T) {
	a := New(simulatorConfig(config.ModePull), zap.NewNop().Sugar())

	snap, err := a.Check(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.InDelta(t, 1013.25, snap.PressureHPa, 20)
	assert.GreaterOrEqual(t, snap.UVIndex, 0.0)
	assert.Zero(t, snap.PrecipitationMm)
}

func TestBuildPullMode(t *testing.T) {
	a := New(simulatorConfig(config.ModePull), zap.NewNop().Sugar())

	s, err := a.Build(context.Background())
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.Scheduler)
	assert.Nil(t, s.Storage)

	rec := httptest.NewRecorder()
	s.REST.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "temperature")
	assert.Len(t, s.State.History(), 1, "pull queries feed history")

	rec = httptest.NewRecorder()
	s.REST.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildPushMode(t *testing.T) {
	a := New(simulatorConfig(config.ModePush), zap.NewNop().Sugar())

	s, err := a.Build(context.Background())
	require.NoError(t, err)

	require.NotNil(t, s.Scheduler)
	require.NotNil(t, s.Storage.Archive)
	assert.Len(t, s.Scheduler.Status(), 2)

	rec := httptest.NewRecorder()
	s.REST.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing published yet")

	rec = httptest.NewRecorder()
	s.REST.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestBuildPushModeWithoutArchive(t *testing.T) {
	cfg := simulatorConfig(config.ModePush)
	cfg.Storage.Archive = nil

	s, err := New(cfg, zap.NewNop().Sugar()).Build(context.Background())
	require.NoError(t, err)
	defer s.Close()

	status := s.Scheduler.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "fast", status[0].Name)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func servingConfig(t *testing.T) *config.ConfigData {
	cfg := simulatorConfig(config.ModePull)
	cfg.REST.ListenAddr = "127.0.0.1"
	cfg.REST.Port = freePort(t)
	cfg.Rain.PollInterval = time.Millisecond
	return cfg
}

func waitForServer(t *testing.T, port int) {
	t.Helper()
	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServeReleasesSensorsAfterShutdown(t *testing.T) {
	cfg := servingConfig(t)
	a := New(cfg, zap.NewNop().Sugar())

	s, err := a.Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, s) }()

	waitForServer(t, cfg.REST.Port)
	for _, g := range s.Sensors.Guards() {
		require.True(t, g.Ready(), g.Name())
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	for _, g := range s.Sensors.Guards() {
		assert.False(t, g.Ready(), "%s released", g.Name())
	}
	// a poll after release would reinitialize the converter
	time.Sleep(20 * time.Millisecond)
	for _, g := range s.Sensors.Guards() {
		assert.False(t, g.Ready(), "%s untouched after release", g.Name())
	}

	_, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/", cfg.REST.Port))
	assert.Error(t, err, "listener closed")
}

func TestRunReturnsOnCancel(t *testing.T) {
	cfg := servingConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg, zap.NewNop().Sugar()).Run(ctx) }()

	waitForServer(t, cfg.REST.Port)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
