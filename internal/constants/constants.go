// Package constants defines application-wide constants and version information.
package constants

import (
	"runtime"
	"time"
)

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

const (
	// MmPerTip is the rain volume represented by one tip of the optical gauge
	MmPerTip = 0.061

	// UVBaselineVolts is the UV sensor output at index zero
	UVBaselineVolts = 1.0
	// UVIndexPerVolt is the slope of the UV calibration above the baseline
	UVIndexPerVolt = 7.5

	// SeaLevelPressureHPa is the reference pressure used for altitude
	SeaLevelPressureHPa = 1013.25

	RainPollInterval  = 50 * time.Millisecond
	MinTipInterval    = 250 * time.Millisecond
	LevelThreshold    = 0.35
	DeltaThreshold    = 1.0
	SensorReadTimeout = 2 * time.Second

	FastInterval    = 60 * time.Second
	SlowInterval    = 20 * time.Minute
	HistoryCapacity = 12

	// TimeLayout is how snapshot timestamps are rendered to clients
	TimeLayout = "2006-01-02 15:04:05"
)
