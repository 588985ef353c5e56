// Package models contains domain types for the pump telemetry simulation.
package models

import "math"

// Timeline constants for the simulated run.
const (
	FramesPerDay            = 24
	SimulatedDays           = 14
	SeriesLength            = SimulatedDays * FramesPerDay // 336
	MaintenanceFrame        = 84                           // day 3.5
	MaintenanceWindowFrames = 12
)

// Domain bounds for the measured quantities.
const (
	MinVibration    = 2.8
	MinPressure     = 0.65
	MaxPressure     = 1.0
	MinMotorCurrent = 43.0
	MaxMotorCurrent = 50.0
)

// Sample is one immutable sensor reading of the pump.
type Sample struct {
	FrameIndex   int     `json:"frame" msgpack:"frame"`
	ElapsedDays  float64 `json:"day" msgpack:"day"`
	Vibration    float64 `json:"vibration" msgpack:"vibration"`       // mm/s
	Pressure     float64 `json:"pressure" msgpack:"pressure"`         // bar
	MotorCurrent float64 `json:"motorCurrent" msgpack:"motorCurrent"` // A
	Status       Status  `json:"status" msgpack:"status"`
}

// NewSample builds a Sample from raw measured values, clamping each quantity
// to its domain bounds and deriving the elapsed time and status.
func NewSample(frame int, vibration, pressure, motorCurrent float64) Sample {
	vibration = math.Max(MinVibration, vibration)
	pressure = Clamp(pressure, MinPressure, MaxPressure)
	motorCurrent = Clamp(motorCurrent, MinMotorCurrent, MaxMotorCurrent)

	return Sample{
		FrameIndex:   frame,
		ElapsedDays:  float64(frame) / FramesPerDay,
		Vibration:    vibration,
		Pressure:     pressure,
		MotorCurrent: motorCurrent,
		Status:       ClassifyVibration(vibration),
	}
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Series is the ordered, read-only sequence of samples for one run.
// Element i always has FrameIndex i.
type Series []Sample

// Len returns the number of frames in the series.
func (s Series) Len() int {
	return len(s)
}

// LastFrame returns the index of the final frame, or -1 for an empty series.
func (s Series) LastFrame() int {
	return len(s) - 1
}

// At returns the sample at frame and whether the frame is a valid index.
func (s Series) At(frame int) (Sample, bool) {
	if frame < 0 || frame >= len(s) {
		return Sample{}, false
	}
	return s[frame], true
}
