// Package rng centralizes the seeded-vs-OS-seeded random source
// decision used by every hash family.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	mrand "math/rand"
)

// New returns a *math/rand.Rand seeded deterministically by seed, unless
// seed is 0, in which case it is seeded from the OS's entropy source.
func New(seed int64) *mrand.Rand {
	if seed == 0 {
		seed = osSeed()
	}
	return mrand.New(mrand.NewSource(seed))
}

// Derive draws a new deterministic sub-seed from r, used to seed one
// hasher per hash table from a single master RNG.
func Derive(r *mrand.Rand) int64 {
	return r.Int63()
}

func osSeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) &^ (1 << 63))
}
