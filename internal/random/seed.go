// Package random provides seeding helpers for the pseudo-random sources used
// by dice and tool handlers.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewSource returns a math/rand generator seeded from crypto/rand. A zero
// seed is used as the fallback when the entropy source fails.
func NewSource() *rand.Rand {
	seed, err := NewSeed()
	if err != nil {
		seed = 0
	}
	return rand.New(rand.NewSource(seed))
}
