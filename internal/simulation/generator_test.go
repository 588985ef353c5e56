package simulation

import (
	"math"
	"testing"

	"github.com/pump-sim/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constSource always returns the same value, pinning the noise term.
type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

func TestGenerateSeriesShape(t *testing.T) {
	for run := 0; run < 20; run++ {
		series := GenerateSeries()
		require.Len(t, series, models.SeriesLength)

		for f, s := range series {
			if s.FrameIndex != f {
				t.Fatalf("frame %d has index %d", f, s.FrameIndex)
			}
			if s.ElapsedDays != float64(f)/24 {
				t.Fatalf("frame %d has elapsedDays %v", f, s.ElapsedDays)
			}
			if s.Vibration < 2.8 {
				t.Fatalf("frame %d vibration %v below floor", f, s.Vibration)
			}
			minP := 0.65
			if f >= models.MaintenanceFrame {
				minP = 0.85
			}
			if s.Pressure < minP || s.Pressure > 1.0 {
				t.Fatalf("frame %d pressure %v outside [%v, 1.0]", f, s.Pressure, minP)
			}
			if s.MotorCurrent < 43.0 || s.MotorCurrent > 50.0 {
				t.Fatalf("frame %d motor current %v outside [43, 50]", f, s.MotorCurrent)
			}
			if s.Status != models.ClassifyVibration(s.Vibration) {
				t.Fatalf("frame %d status %s does not match vibration %v", f, s.Status, s.Vibration)
			}
		}
	}
}

func TestGenerateSeriesUnseededDiffers(t *testing.T) {
	a := GenerateSeries()
	b := GenerateSeries()

	same := true
	for i := range a {
		if a[i].Vibration != b[i].Vibration {
			same = false
			break
		}
	}
	assert.False(t, same, "two unseeded series should not be identical")
}

func TestSeededGeneratorIsReproducible(t *testing.T) {
	a := NewGenerator(NewSeededSource(42)).Generate()
	b := NewGenerator(NewSeededSource(42)).Generate()
	assert.Equal(t, a, b)

	c := NewGenerator(NewSeededSource(43)).Generate()
	assert.NotEqual(t, a, c)
}

func TestGenerateNoiseFreeCurve(t *testing.T) {
	// 0.5 cancels every noise term.
	series := NewGenerator(constSource(0.5)).Generate()

	assert.InDelta(t, 3.0, series[0].Vibration, 1e-9)
	assert.InDelta(t, 1.0, series[0].Pressure, 1e-9) // 1.05 clamped
	assert.InDelta(t, 44.0, series[0].MotorCurrent, 1e-9)

	// Just before maintenance: 3.0 + 1.8*83/84
	want := 3.0 + 1.8*83.0/84.0
	assert.InDelta(t, want, series[83].Vibration, 1e-9)
	assert.InDelta(t, 1.05-(want-3.0)*0.2, series[83].Pressure, 1e-9)
	assert.InDelta(t, 44.0+(want-3.0)*1.5, series[83].MotorCurrent, 1e-9)
	assert.Equal(t, models.StatusCritical, series[83].Status)

	// Maintenance resets the baseline.
	assert.InDelta(t, 3.0, series[84].Vibration, 1e-9)
	assert.Equal(t, models.StatusNormal, series[84].Status)

	last := series[models.SeriesLength-1]
	assert.InDelta(t, 3.0+0.6*251.0/252.0, last.Vibration, 1e-9)
	assert.InDelta(t, 1.05-(last.Vibration-3.0)*0.15, last.Pressure, 1e-9)
}

func TestGenerateNoiseExtremes(t *testing.T) {
	low := NewGenerator(constSource(0)).Generate()
	high := NewGenerator(constSource(math.Nextafter(1, 0))).Generate()

	for f := range low {
		if low[f].Vibration > high[f].Vibration {
			t.Fatalf("frame %d: low-noise vibration %v above high-noise %v", f, low[f].Vibration, high[f].Vibration)
		}
	}
	assert.InDelta(t, 3.0-0.075, low[0].Vibration, 1e-9)
	assert.InDelta(t, 3.0+0.075, high[0].Vibration, 1e-6)
	assert.InDelta(t, 3.0-0.06, low[models.MaintenanceFrame].Vibration, 1e-9)
}

func TestPreMaintenanceTrendRises(t *testing.T) {
	series := NewGenerator(NewSeededSource(7)).Generate()

	avg := func(from, to int) float64 {
		sum := 0.0
		for _, s := range series[from:to] {
			sum += s.Vibration
		}
		return sum / float64(to-from)
	}

	assert.Greater(t, avg(60, 84), avg(0, 24))
	assert.Less(t, avg(84, 108), avg(60, 84))
	assert.Greater(t, avg(312, 336), avg(84, 108))
}

func TestInMaintenanceWindow(t *testing.T) {
	assert.False(t, InMaintenanceWindow(83))
	assert.True(t, InMaintenanceWindow(84))
	assert.True(t, InMaintenanceWindow(95))
	assert.False(t, InMaintenanceWindow(96))
	assert.False(t, InMaintenanceWindow(-1))
}

func TestRotationAngle(t *testing.T) {
	assert.Equal(t, 0.0, RotationAngle(0))
	assert.InDelta(t, 20*math.Pi, RotationAngle(10), 1e-12)
}
