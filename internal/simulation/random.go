package simulation

import "math/rand/v2"

// RandSource yields independent uniform values in [0, 1).
type RandSource interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// NewRandomSource returns an unseeded source backed by the runtime generator.
func NewRandomSource() RandSource {
	return globalSource{}
}

// NewSeededSource returns a deterministic source for reproducible runs.
func NewSeededSource(seed int64) RandSource {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// noise returns a uniform perturbation in [-amplitude, +amplitude).
func noise(src RandSource, amplitude float64) float64 {
	return (src.Float64() - 0.5) * 2 * amplitude
}
