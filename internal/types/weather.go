package types

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Voltage is an instantaneous ADC reading in volts
type Voltage float64

// AmbientReading is one raw reading from the temperature/humidity/pressure sensor
type AmbientReading struct {
	TemperatureC float64 // degrees Celsius
	HumidityPct  float64 // relative humidity, percent
	PressureHPa  float64 // station pressure, hectopascals
	AltitudeM    float64 // altitude derived from pressure, meters
}

// Snapshot is one immutable composite reading of the station. Every numeric
// field is rounded to two decimal places when the snapshot is created.
type Snapshot struct {
	ID              string    `gorm:"column:id;primaryKey" json:"id"`
	Timestamp       time.Time `gorm:"column:time" json:"time"`
	TemperatureC    float64   `gorm:"column:temperature" json:"temperature"`
	HumidityPct     float64   `gorm:"column:humidity" json:"humidity"`
	PressureHPa     float64   `gorm:"column:pressure" json:"pressure"`
	AltitudeM       float64   `gorm:"column:altitude" json:"altitude"`
	UVIndex         float64   `gorm:"column:uv_index" json:"uv_index"`
	PrecipitationMm float64   `gorm:"column:precipitation" json:"precipitation"`
}

// NewSnapshot assembles a snapshot from raw values, rounding each to 2dp and
// assigning a fresh record ID
func NewSnapshot(ts time.Time, ambient AmbientReading, uvIndex, precipitationMm float64) Snapshot {
	return Snapshot{
		ID:              uuid.New().String(),
		Timestamp:       ts,
		TemperatureC:    Round2(ambient.TemperatureC),
		HumidityPct:     Round2(ambient.HumidityPct),
		PressureHPa:     Round2(ambient.PressureHPa),
		AltitudeM:       Round2(ambient.AltitudeM),
		UVIndex:         Round2(uvIndex),
		PrecipitationMm: Round2(precipitationMm),
	}
}

// Round2 rounds v to two decimal places, half away from zero
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
