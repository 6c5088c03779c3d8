package restserver

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/tipstation/internal/constants"
	"github.com/chrissnell/tipstation/internal/types"
)

// transformReading converts a snapshot for output, rendering its timestamp
// in loc
func transformReading(s types.Snapshot, loc *time.Location, withID bool) WeatherReading {
	r := WeatherReading{
		Temperature:   s.TemperatureC,
		Humidity:      s.HumidityPct,
		Pressure:      s.PressureHPa,
		Altitude:      s.AltitudeM,
		UVIndex:       s.UVIndex,
		Precipitation: s.PrecipitationMm,
		Time:          s.Timestamp.In(loc).Format(constants.TimeLayout),
	}
	if withID {
		r.ID = s.ID
	}
	return r
}

// transformReadings converts a slice of snapshots, never returning nil so an
// empty result encodes as []
func transformReadings(snaps []types.Snapshot, loc *time.Location, withID bool) []WeatherReading {
	out := make([]WeatherReading, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, transformReading(s, loc, withID))
	}
	return out
}

var summaryFields = []struct {
	name  string
	value func(types.Snapshot) float64
}{
	{"temperature", func(s types.Snapshot) float64 { return s.TemperatureC }},
	{"humidity", func(s types.Snapshot) float64 { return s.HumidityPct }},
	{"pressure", func(s types.Snapshot) float64 { return s.PressureHPa }},
	{"altitude", func(s types.Snapshot) float64 { return s.AltitudeM }},
	{"uv_index", func(s types.Snapshot) float64 { return s.UVIndex }},
	{"precipitation", func(s types.Snapshot) float64 { return s.PrecipitationMm }},
}

// summarize computes per-field statistics over snaps, oldest first
func summarize(snaps []types.Snapshot, loc *time.Location) HistorySummary {
	summary := HistorySummary{
		Count:  len(snaps),
		Fields: make(map[string]FieldSummary, len(summaryFields)),
	}
	if len(snaps) == 0 {
		return summary
	}
	summary.From = snaps[0].Timestamp.In(loc).Format(constants.TimeLayout)
	summary.To = snaps[len(snaps)-1].Timestamp.In(loc).Format(constants.TimeLayout)

	values := make([]float64, len(snaps))
	for _, f := range summaryFields {
		for i, s := range snaps {
			values[i] = f.value(s)
		}
		summary.Fields[f.name] = FieldSummary{
			Mean: types.Round2(stat.Mean(values, nil)),
			Min:  floats.Min(values),
			Max:  floats.Max(values),
		}
	}
	return summary
}
