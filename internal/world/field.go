package world

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// FieldConfig holds the parameters of a fractal noise field.
type FieldConfig struct {
	Seed        int64   // Random seed (0 = random)
	Frequency   float64 // Base frequency in cycles per scenario unit
	Octaves     int     // Number of layered frequencies
	Persistence float64 // Amplitude falloff per octave
}

// DefaultFieldConfig returns a gentle, low-frequency field.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		Seed:        0,
		Frequency:   0.5,
		Octaves:     4,
		Persistence: 0.5,
	}
}

// Field is a scalar value over the plane in [0, 1], such as terrain elevation
// or danger, that agents can sample at their own position.
type Field struct {
	cfg   FieldConfig
	noise opensimplex.Noise
}

// NewField builds a field from cfg. A zero seed picks a random one.
func NewField(cfg FieldConfig) *Field {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.Octaves < 1 {
		cfg.Octaves = 1
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = DefaultFieldConfig().Frequency
	}
	return &Field{cfg: cfg, noise: opensimplex.NewNormalized(seed)}
}

// Sample returns the field value at p, in [0, 1].
func (f *Field) Sample(p Vec2) float64 {
	return octaveNoise(f.noise, p.X, p.Y, f.cfg.Octaves, f.cfg.Frequency, f.cfg.Persistence)
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
