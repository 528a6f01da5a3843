// Package mangle implements an anonymizer for PDF documents: it
// destroys the identifying content (metadata, text, vector geometry,
// raster images, auxiliary resources) while keeping the structural
// skeleton intact, so that PDF software behaves the same on the
// mangled file as on the original.
package mangle

import (
	"math/rand"
	"time"
)

// Source is the random generator of a mangling run. It is an explicit
// handle rather than the global generator, so that two runs with the
// same seed produce identical output.
type Source struct {
	seed int64
	rng  *rand.Rand
}

// NewSource returns a deterministic generator.
func NewSource(seed int64) *Source {
	return &Source{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// NewEntropySource returns a time-seeded generator. The seed is
// recorded and may be logged to replay a run.
func NewEntropySource() *Source {
	return NewSource(time.Now().UnixNano())
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 { return s.seed }

// ForPage derives an independent generator for the given page, from
// the run seed and the page index alone. Pages can thus be mangled in
// any order without changing the output.
func (s *Source) ForPage(index int) *Source {
	const mix = -0x61c8864680b583eb // 0x9e3779b97f4a7c15 as int64
	return NewSource(s.seed ^ (int64(index)+1)*mix)
}

// Normal returns a normally distributed value with mean 0 and the
// given standard deviation.
func (s *Source) Normal(sigma float64) float64 {
	return s.rng.NormFloat64() * sigma
}

// Intn returns a uniform value in [0, n).
func (s *Source) Intn(n int) int { return s.rng.Intn(n) }

// Pick returns a uniformly chosen element of the pool, which must not
// be empty.
func (s *Source) Pick(pool []rune) rune {
	return pool[s.rng.Intn(len(pool))]
}
