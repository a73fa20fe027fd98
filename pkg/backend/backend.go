// Package backend implements the storage abstraction LSH indices are
// built on: a bucketed mapping from (table index, hash) to the set of
// data-point ids that hash there, plus an optional id -> vector store.
// Three variants satisfy the same Backend contract: in-memory maps, a
// SQLite file, and an in-memory SQLite database.
package backend

import (
	"errors"

	roaring "github.com/RoaringBitmap/roaring/v2"

	"github.com/vecindex/golsh/pkg/hash"
)

// Sentinel errors returned by Backend implementations. ErrNotFound is
// recovered locally by the index's query path; the rest surface to the
// caller verbatim.
var (
	ErrNotFound        = errors.New("backend: bucket not found")
	ErrIndexOnly       = errors.New("backend: store is index-only, no vector recovery")
	ErrHashersStored   = errors.New("backend: hashers already stored")
	ErrInvalidParam    = errors.New("backend: invalid construction parameter")
	ErrIO              = errors.New("backend: I/O failure")
	ErrNoTransaction   = errors.New("backend: no transaction in progress")
	ErrUnsupported     = errors.New("backend: operation not supported by this variant")
)

// Bucket is the set of DataPointIds sharing one hash in one table. A
// roaring bitmap is a direct, compact fit for a set of uint32 ids with
// fast unions, which the multi-probe query path needs heavily.
type Bucket = roaring.Bitmap

// Backend is the storage contract every variant (in-memory, SQL-file,
// SQL-in-memory) satisfies.
type Backend interface {
	// Put inserts v into table t at key hash, returning v's id. The first
	// time a given vector (by value) is put into this backend it is
	// assigned a new monotonically increasing id; subsequent puts of the
	// same vector content (e.g. the L-1 remaining tables for the same
	// logical insert) return that same id.
	Put(h hash.Hash, v []float32, t int) (uint32, error)

	// Delete removes v's id from the bucket at (hash, t). No-op if v was
	// never stored or is already absent from that bucket.
	Delete(h hash.Hash, v []float32, t int) error

	// UpdateByIdx atomically moves id from bucket (oldHash, t) to bucket
	// (newHash, t).
	UpdateByIdx(oldHash, newHash hash.Hash, id uint32, t int) error

	// QueryBucket returns the bucket at (hash, t). Returns ErrNotFound
	// when no such key exists in table t, distinguished from "exists but
	// empty".
	QueryBucket(h hash.Hash, t int) (*Bucket, error)

	// IdxToDatapoint resolves a stored id back to its vector. Returns
	// ErrIndexOnly if the backend was constructed with onlyIndex=true.
	IdxToDatapoint(id uint32) ([]float32, error)

	// IncreaseStorage hints that the backend should pre-reserve capacity
	// for n additional data points.
	IncreaseStorage(n int) error

	// StoreHashers persists the hasher set. Fails with ErrHashersStored
	// if hashers were already persisted in this backend.
	StoreHashers(blob []byte) error

	// LoadHashers retrieves a previously persisted hasher set.
	LoadHashers() ([]byte, error)

	// Describe returns a human-readable summary of per-table bucket-size
	// statistics (mean/min/max/stddev).
	Describe() (string, error)

	// UniqueHashInts returns the set of hash component values found in
	// the bucket keys currently present, for diagnostics. Values that only
	// appeared in buckets since emptied by Delete or UpdateByIdx are not
	// included.
	UniqueHashInts() map[hash.Primitive]struct{}

	// NumTables returns L, the number of hash tables this backend holds.
	NumTables() int

	// NumDatapoints returns the number of distinct data points that have
	// been assigned ids in this backend.
	NumDatapoints() (int, error)

	// Close releases any resources (open files, database handles) held
	// by the backend.
	Close() error
}

// Transactional is implemented by the SQL-backed variants, which can
// buffer puts inside a transaction between InitTransaction and Commit.
type Transactional interface {
	InitTransaction() error
	Commit() error
}

// Snapshotter is implemented by the in-memory SQL variant, which can
// flush its state to a database file on disk.
type Snapshotter interface {
	ToDB(path string) error
}
