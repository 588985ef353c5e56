package models

// DefaultSpeed is the playback speed multiplier a new session starts with.
const DefaultSpeed = 0.5

// SpeedOptions are the multipliers offered by the control surface.
// Any positive multiplier is accepted by the controller.
var SpeedOptions = []float64{0.05, 0.1, 0.5, 1, 2, 4}

// PlaybackState is an immutable snapshot of the playback controller.
type PlaybackState struct {
	CurrentFrame    int     `json:"currentFrame" msgpack:"currentFrame"`
	IsPlaying       bool    `json:"isPlaying" msgpack:"isPlaying"`
	SpeedMultiplier float64 `json:"speedMultiplier" msgpack:"speedMultiplier"`
	Generation      uint64  `json:"generation" msgpack:"generation"` // token of the live timer
	Version         uint64  `json:"version" msgpack:"version"`       // increments on every change
}

// DiagramView is what the schematic diagram renderer needs for one frame.
type DiagramView struct {
	Sample          Sample  `json:"sample"`
	ShowMaintenance bool    `json:"showMaintenance"`
	CurrentFrame    int     `json:"currentFrame"`
	RotationAngle   float64 `json:"rotationAngle"` // radians, CurrentFrame * 2π
	StatusColor     string  `json:"statusColor"`
	StatusLabel     string  `json:"statusLabel"`
}

// ChartView is what the time-series chart renderer needs.
type ChartView struct {
	Series       Series `json:"series"`
	CurrentFrame int    `json:"currentFrame"`
}

// ControlView is what the control surface needs.
type ControlView struct {
	CurrentFrame    int       `json:"currentFrame"`
	SeriesLength    int       `json:"seriesLength"`
	IsPlaying       bool      `json:"isPlaying"`
	SpeedMultiplier float64   `json:"speedMultiplier"`
	SpeedOptions    []float64 `json:"speedOptions"`
	Sample          Sample    `json:"sample"`
	Version         uint64    `json:"version"`
}

// FrameUpdate is pushed to streaming clients on every playback change.
type FrameUpdate struct {
	SessionID string      `json:"sessionId"`
	Control   ControlView `json:"control"`
	Diagram   DiagramView `json:"diagram"`
}
