// Package entropy provides the random sources a scenario draws from.
// Seeded sources make runs reproducible; the crypto source does not.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

// Seeded is a reproducible source. It is not safe for concurrent use.
type Seeded struct {
	seed int64
	rng  *mathrand.Rand
}

// NewSeeded returns a source that replays the same sequence for the same seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{seed: seed, rng: mathrand.New(mathrand.NewSource(seed))}
}

// Float64 returns the next value in the sequence.
func (s *Seeded) Float64() float64 {
	return s.rng.Float64()
}

// Seed returns the seed the source was created with.
func (s *Seeded) Seed() int64 {
	return s.seed
}

// Jitter returns a value in [-amplitude, +amplitude] drawn from src.
func Jitter(src Source, amplitude float64) float64 {
	return amplitude - src.Float64()*2*amplitude
}

type cryptoSource struct{}

// Crypto returns a non-reproducible source backed by crypto/rand.
func Crypto() Source {
	return cryptoSource{}
}

func (cryptoSource) Float64() float64 {
	return cryptoRandFloat()
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Fixed is a source that always returns the same value. Useful in tests.
type Fixed float64

// Float64 returns f.
func (f Fixed) Float64() float64 {
	return float64(f)
}
