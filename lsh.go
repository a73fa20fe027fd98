// Package lsh implements a multi-table locality-sensitive-hashing index
// for approximate nearest-neighbor search, supporting sign-random-
// projections (cosine), L2 (Euclidean), and MIPS (maximum inner
// product) hash families, base and multi-probe querying, and
// in-memory/SQL-file/SQL-memory storage backends.
package lsh

import (
	"fmt"
	mrand "math/rand"

	"github.com/vecindex/golsh/internal/obs"
	"github.com/vecindex/golsh/internal/rng"
	"github.com/vecindex/golsh/pkg/backend"
	"github.com/vecindex/golsh/pkg/hash"
)

// Index is a fitted, ready-to-use LSH index: K hash components, L hash
// tables, D-dimensional vectors, one hasher per table, a storage
// backend, and the optional multi-probe/query-directed configuration.
type Index struct {
	k, l, d int
	seed    int64

	family  string
	hashers []hash.VecHash
	prober  []hash.QueryDirectedProber // nil entries where the family doesn't support it

	backend backend.Backend

	onlyIndex     bool
	multiProbe    bool
	probeBudget   int
	queryDirected bool

	// storedCount tracks the number of distinct vectors ever inserted,
	// maintained by StoreVec/StoreVecs in insert.go.
	storedCount uint32

	logger obs.Logger
}

// Len returns the number of distinct vectors that have been assigned
// ids. DeleteVec removes bucket membership only, so it does not lower
// this count.
func (idx *Index) Len() int { return int(idx.storedCount) }

func (idx *Index) Dim() int            { return idx.d }
func (idx *Index) NumTables() int      { return idx.l }
func (idx *Index) NumProjections() int { return idx.k }

// Close releases the backend's resources (database handles for the SQL
// variants; a no-op for the in-memory backend).
func (idx *Index) Close() error {
	if err := idx.backend.Close(); err != nil {
		return wrapError("close", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}
	return nil
}

func validateVec(idx *Index, v []float32) error {
	if len(v) != idx.d {
		return wrapError("validate", ErrDim)
	}
	return nil
}

// translateHashErr maps pkg/hash's sentinel errors onto this package's
// public error kinds, so callers only ever need to check against the
// lsh package's own sentinels.
func translateHashErr(err error) error {
	switch err {
	case hash.ErrDimension:
		return ErrDim
	case hash.ErrNotFitted:
		return ErrNotFitted
	case hash.ErrInvalidParam:
		return ErrInvalidParam
	default:
		return err
	}
}

func newRand(seed int64) *mrand.Rand {
	return rng.New(seed)
}

// defaultLogger is used by free functions (Load) that have no builder
// to inherit a configured logger from.
func defaultLogger() obs.Logger {
	return obs.NewNop()
}
