package simulation

import (
	"math"

	"github.com/pump-sim/backend/internal/models"
)

// InMaintenanceWindow reports whether frame falls inside the maintenance
// overlay interval [84, 96).
func InMaintenanceWindow(frame int) bool {
	return frame >= models.MaintenanceFrame &&
		frame < models.MaintenanceFrame+models.MaintenanceWindowFrames
}

// RotationAngle is the impeller angle for a frame in radians. It depends on
// the frame count only, never on playback speed or elapsed days.
func RotationAngle(frame int) float64 {
	return float64(frame) * 2 * math.Pi
}
