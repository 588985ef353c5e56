package models

import "time"

// SessionInfo describes the active simulation session.
type SessionInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	SeriesLength int       `json:"seriesLength"`
	Seeded       bool      `json:"seeded"`
	Seed         int64     `json:"seed,omitempty"`
	Regenerated  int       `json:"regenerated"` // number of times the series was rebuilt
}

// DailySummary aggregates one simulated day of samples.
type DailySummary struct {
	Day             int     `json:"day"`
	Samples         int     `json:"samples"`
	MinVibration    float64 `json:"minVibration"`
	AvgVibration    float64 `json:"avgVibration"`
	MaxVibration    float64 `json:"maxVibration"`
	AvgPressure     float64 `json:"avgPressure"`
	AvgMotorCurrent float64 `json:"avgMotorCurrent"`
	WorstStatus     Status  `json:"worstStatus"`
}
