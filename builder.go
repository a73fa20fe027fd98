package lsh

import (
	"fmt"

	"github.com/vecindex/golsh/internal/obs"
	"github.com/vecindex/golsh/pkg/backend"
	"github.com/vecindex/golsh/pkg/hash"
)

// backendKind selects which Backend variant a finalizer (SRP/L2/MIPS)
// constructs, per the builder chain's configuration.
type backendKind int

const (
	backendMemory backendKind = iota
	backendSQLFile
	backendSQLMemory
)

// Builder accumulates construction parameters until a hash-family
// finalizer (SRP, L2, MIPS) turns them into a ready Index.
type Builder struct {
	k, l, d int
	seed    int64

	onlyIndex     bool
	multiProbe    bool
	queryDirected bool
	probeBudget   int

	kind   backendKind
	dbPath string

	reserve int

	logger obs.Logger

	err error
}

// New starts a builder for an index with hash length K, L hash tables,
// and D-dimensional vectors.
func New(k, l, d int) *Builder {
	b := &Builder{
		k: k, l: l, d: d,
		probeBudget: 16,
		dbPath:      "./lsh.db3",
		logger:      obs.NewNop(),
	}
	if k <= 0 || l <= 0 || d <= 0 {
		b.err = wrapError("new", ErrInvalidParam)
	}
	return b
}

// Seed fixes the RNG seed used to derive every table's hasher. Seed 0
// (the default) seeds from the OS, making construction non-deterministic.
func (b *Builder) Seed(seed int64) *Builder {
	b.seed = seed
	return b
}

// OnlyIndex configures the backend to store ids only, without a vector
// recovery table. IdxToDatapoint/QueryBucket then fail with ErrIndexOnly.
func (b *Builder) OnlyIndex() *Builder {
	b.onlyIndex = true
	return b
}

// MultiProbe enables multi-probe querying with the given per-table
// perturbation budget, using step-wise probing by default.
func (b *Builder) MultiProbe(budget int) *Builder {
	if budget <= 0 {
		b.err = wrapError("multi_probe", ErrInvalidParam)
		return b
	}
	b.multiProbe = true
	b.probeBudget = budget
	return b
}

// QueryDirected switches an already-enabled multi-probe configuration
// to rank perturbations by distance to the query's slot boundary
// instead of step-wise combinatorial order. Only the L2 family can
// score slot boundaries; SRP and MIPS indices fall back to step-wise
// probing.
func (b *Builder) QueryDirected() *Builder {
	b.queryDirected = true
	return b
}

// Base disables multi-probing, reverting to single-hash-per-table
// querying.
func (b *Builder) Base() *Builder {
	b.multiProbe = false
	b.queryDirected = false
	return b
}

// SetDatabaseFile selects the SQL-file backend, writing to path. Has no
// effect once a finalizer has been called.
func (b *Builder) SetDatabaseFile(path string) *Builder {
	b.kind = backendSQLFile
	b.dbPath = path
	return b
}

// SQLMemory selects the SQL-in-memory backend variant, which supports
// the same Transactional/Snapshotter surface as the file backend but
// keeps no file on disk until ToDB is called on the resulting backend.
func (b *Builder) SQLMemory() *Builder {
	b.kind = backendSQLMemory
	return b
}

// IncreaseStorage hints the backend to pre-reserve capacity for n data
// points, applied once the backend is constructed by a finalizer.
func (b *Builder) IncreaseStorage(n int) *Builder {
	b.reserve = n
	return b
}

// Logger overrides the index's logger; defaults to a no-op sink.
func (b *Builder) Logger(l obs.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) buildBackend() (backend.Backend, error) {
	switch b.kind {
	case backendSQLFile:
		return backend.OpenSQL(b.dbPath, b.l, b.onlyIndex)
	case backendSQLMemory:
		return backend.OpenSQLMemory(b.l, b.onlyIndex)
	default:
		return backend.NewMemory(b.l, b.onlyIndex)
	}
}

// finalize constructs the Index from the builder's accumulated state
// and the hashers produced by a family-specific finalizer. A fresh
// backend stores the serialized hasher set; a pre-existing one on disk
// supplies its own, discarding the freshly built set, so that
// re-opening an SQL-file index reproduces the same hashes.
func (b *Builder) finalize(family string, hashers []hash.VecHash, probers []hash.QueryDirectedProber, serialized []byte) (*Index, error) {
	if b.err != nil {
		return nil, b.err
	}

	be, err := b.buildBackend()
	if err != nil {
		return nil, wrapError("init", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}

	if b.reserve > 0 {
		if err := be.IncreaseStorage(b.reserve); err != nil {
			return nil, wrapError("init", fmt.Errorf("%w: %v", ErrBackendIO, err))
		}
	}

	if err := be.StoreHashers(serialized); err != nil {
		if err != backend.ErrHashersStored {
			return nil, wrapError("init", fmt.Errorf("%w: %v", ErrBackendIO, err))
		}
		// hashers already present: the on-disk set takes precedence over
		// the freshly generated one, so a reopened index reproduces the
		// original session's hashes.
		stored, loadErr := be.LoadHashers()
		if loadErr != nil {
			return nil, wrapError("init", fmt.Errorf("%w: %v", ErrBackendIO, loadErr))
		}
		hashers, loadErr = decodeHashers(stored)
		if loadErr != nil {
			return nil, wrapError("init", fmt.Errorf("%w: %v", ErrSerdeFormat, loadErr))
		}
		probers = buildProbers(hashers)
	}

	count, err := be.NumDatapoints()
	if err != nil {
		return nil, wrapError("init", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}

	return &Index{
		k: b.k, l: b.l, d: b.d,
		seed:          b.seed,
		family:        family,
		hashers:       hashers,
		prober:        probers,
		backend:       be,
		onlyIndex:     b.onlyIndex,
		multiProbe:    b.multiProbe,
		queryDirected: b.queryDirected,
		probeBudget:   b.probeBudget,
		storedCount:   uint32(count),
		logger:        b.logger.With("family", family, "k", b.k, "l", b.l, "d", b.d),
	}, nil
}
