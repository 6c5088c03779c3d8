package restserver

import (
	"time"

	"github.com/chrissnell/tipstation/internal/scheduler"
	"github.com/chrissnell/tipstation/internal/storage"
)

// WeatherReading is the wire form of a snapshot. ID is only set for
// records served from the archive.
type WeatherReading struct {
	ID            string  `json:"id,omitempty"`
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Pressure      float64 `json:"pressure"`
	Altitude      float64 `json:"altitude"`
	UVIndex       float64 `json:"uv_index"`
	Precipitation float64 `json:"precipitation"`
	Time          string  `json:"time"`
}

// FieldSummary holds statistics for one measured quantity
type FieldSummary struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// HistorySummary aggregates the rolling history
type HistorySummary struct {
	Count  int                     `json:"count"`
	From   string                  `json:"from,omitempty"`
	To     string                  `json:"to,omitempty"`
	Fields map[string]FieldSummary `json:"fields"`
}

// TipStatus describes the rain detector
type TipStatus struct {
	Count         uint64  `json:"count"`
	Precipitation float64 `json:"precipitation"`
	Armed         bool    `json:"armed"`
	LastTipAt     string  `json:"last_tip_at,omitempty"`
	Policy        string  `json:"policy"`
}

// StationStatus is the body of GET /status
type StationStatus struct {
	Station string                         `json:"station"`
	Mode    string                         `json:"mode"`
	Version string                         `json:"version"`
	Uptime  string                         `json:"uptime"`
	Rain    TipStatus                      `json:"rain"`
	History int                            `json:"history_entries"`
	Jobs    []scheduler.JobStatus          `json:"jobs"`
	Sensors map[string]bool                `json:"sensors"`
	Health  map[string]*storage.HealthData `json:"health"`
}

var startedAt = time.Now()
