// Package simulation builds the synthetic pump telemetry series.
//
// The curve models bearing wear: vibration climbs steeply until the
// maintenance event at day 3.5, then restarts from baseline with a gentler
// slope. Pressure falls as vibration rises and motor current rises slightly.
package simulation

import (
	"math"

	"github.com/pump-sim/backend/internal/models"
)

// Curve parameters.
const (
	baselineVibration = 3.0

	preRampSpan   = 1.8 // 3.0 -> 4.8 over the pre-maintenance frames
	preVibNoise   = 0.075
	postRampSpan  = 0.6 // 3.0 -> 3.6 over the post-maintenance frames
	postVibNoise  = 0.06
	basePressure  = 1.05
	prePressureK  = 0.20
	postPressureK = 0.15
	prePresNoise  = 0.015
	postPresNoise = 0.0125

	// Post-maintenance pressure never drops below this.
	postMinPressure = 0.85

	baseCurrent  = 44.0
	currentK     = 1.5
	currentNoise = 0.4
)

// Generator produces series from a random source.
type Generator struct {
	src              RandSource
	length           int
	maintenanceFrame int
}

// NewGenerator creates a generator for the standard 336-frame run.
// A nil source selects the unseeded runtime generator.
func NewGenerator(src RandSource) *Generator {
	if src == nil {
		src = NewRandomSource()
	}
	return &Generator{
		src:              src,
		length:           models.SeriesLength,
		maintenanceFrame: models.MaintenanceFrame,
	}
}

// GenerateSeries returns a fresh unseeded series. Two calls produce different
// values with the same statistical shape.
func GenerateSeries() models.Series {
	return NewGenerator(nil).Generate()
}

// Generate builds a new series. The generator keeps no per-series state, so
// consecutive calls on a seeded generator continue the same random stream.
func (g *Generator) Generate() models.Series {
	series := make(models.Series, g.length)
	for f := 0; f < g.length; f++ {
		series[f] = g.sampleAt(f)
	}
	return series
}

func (g *Generator) sampleAt(frame int) models.Sample {
	pre := frame < g.maintenanceFrame

	vib := g.vibration(frame, pre)
	pres := g.pressure(vib, pre)
	cur := g.motorCurrent(vib)

	return models.NewSample(frame, vib, pres, cur)
}

func (g *Generator) vibration(frame int, pre bool) float64 {
	var v float64
	if pre {
		progress := float64(frame) / float64(g.maintenanceFrame)
		v = baselineVibration + preRampSpan*progress + noise(g.src, preVibNoise)
	} else {
		progress := float64(frame-g.maintenanceFrame) / float64(g.length-g.maintenanceFrame)
		v = baselineVibration + postRampSpan*progress + noise(g.src, postVibNoise)
	}
	return math.Max(models.MinVibration, v)
}

func (g *Generator) pressure(vib float64, pre bool) float64 {
	if pre {
		p := basePressure - (vib-baselineVibration)*prePressureK + noise(g.src, prePresNoise)
		return models.Clamp(p, models.MinPressure, models.MaxPressure)
	}
	p := basePressure - (vib-baselineVibration)*postPressureK + noise(g.src, postPresNoise)
	return models.Clamp(p, postMinPressure, models.MaxPressure)
}

func (g *Generator) motorCurrent(vib float64) float64 {
	c := baseCurrent + (vib-baselineVibration)*currentK + noise(g.src, currentNoise)
	return models.Clamp(c, models.MinMotorCurrent, models.MaxMotorCurrent)
}
