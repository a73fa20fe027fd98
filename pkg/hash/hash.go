// Package hash implements the LSH hash families: sign-random-projections
// (cosine), L2 (Euclidean), and MIPS (maximum inner product, via an
// asymmetric transform wrapping an L2 hasher).
package hash

import "errors"

// Primitive is the small-signed-integer domain hash components live in.
// SRP hashes use {0,1}; L2/MIPS use the floor of a real projection,
// cast down. Keep K at 127 or below so components fit.
type Primitive = int8

// Hash is an ordered sequence of K hash components.
type Hash []Primitive

// Equal reports whether two hashes are component-wise identical.
func (h Hash) Equal(other Hash) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

// Errors returned by hash family construction and use.
var (
	ErrInvalidParam = errors.New("hash: invalid construction parameter")
	ErrDimension    = errors.New("hash: vector dimension mismatch")
	ErrNotFitted    = errors.New("hash: MIPS hasher used before Fit")
)

// VecHash is the narrow capability every hash family exposes. SRP and L2
// compute identical hashes on the query and put (insert) paths; MIPS is
// asymmetric and differs between the two per its construction.
type VecHash interface {
	// HashQuery hashes a query-side vector.
	HashQuery(v []float32) (Hash, error)
	// HashPut hashes a corpus (insert-side) vector.
	HashPut(v []float32) (Hash, error)
	// Len returns K, the hash length produced by this hasher.
	Len() int
}

// QueryDirectedProber is implemented by hash families (currently only L2)
// that can score individual hash-component perturbations by their
// distance to the query's true slot boundary, for use by pkg/probe's
// query-directed multi-probe generator.
type QueryDirectedProber interface {
	// DistanceToBound returns, for each projection i, the distance from
	// the query's projected value to the lower (xiMinus) and upper
	// (xiPlus) boundary of the slot that `hash` identifies. If hash is
	// nil the query's own hash is used.
	DistanceToBound(q []float32, hash Hash) (xiMinus, xiPlus []float32, err error)
}
