package models

// Status represents the severity tier of a vibration reading.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusHigh     Status = "high"
	StatusCritical Status = "critical"
)

// Vibration thresholds (mm/s). Each value is the inclusive lower bound of the
// next tier.
const (
	VibrationWarning  = 3.5
	VibrationHigh     = 4.0
	VibrationCritical = 4.5
)

// AllStatuses lists the tiers in increasing severity.
var AllStatuses = []Status{StatusNormal, StatusWarning, StatusHigh, StatusCritical}

// ClassifyVibration maps a vibration magnitude to its severity tier.
// NaN falls through every comparison and is reported as critical.
func ClassifyVibration(vibration float64) Status {
	switch {
	case vibration < VibrationWarning:
		return StatusNormal
	case vibration < VibrationHigh:
		return StatusWarning
	case vibration < VibrationCritical:
		return StatusHigh
	default:
		return StatusCritical
	}
}

// Severity returns 0 for normal up to 3 for critical, -1 for unknown values.
func (s Status) Severity() int {
	for i, st := range AllStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

// Color returns the indicator color the diagram uses for the status.
func (s Status) Color() string {
	switch s {
	case StatusNormal:
		return "#22c55e" // green
	case StatusWarning:
		return "#eab308" // yellow
	case StatusHigh:
		return "#f97316" // orange
	case StatusCritical:
		return "#ef4444" // red
	default:
		return "#22c55e"
	}
}

// Label returns the display name of the status.
func (s Status) Label() string {
	switch s {
	case StatusNormal:
		return "Normal"
	case StatusWarning:
		return "Warning"
	case StatusHigh:
		return "High"
	case StatusCritical:
		return "Critical"
	default:
		return string(s)
	}
}
