package lsh

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/vecindex/golsh/pkg/backend"
)

// intermediateBlob carries the hashers, the in-memory backend's state,
// and the scalar construction parameters needed to reproduce a usable
// Index on load. Only the in-memory backend variant is supported: a
// SQL-file backend already persists itself to its database file.
type intermediateBlob struct {
	Hashers       []byte
	Mem           *backend.MemorySnapshot
	L, K, D       int
	Seed          int64
	Family        string
	OnlyIndex     bool
	MultiProbe    bool
	QueryDirected bool
	ProbeBudget   int
}

// Dump serializes the index to path. Only valid for an index built
// with the default in-memory backend.
func (idx *Index) Dump(path string) error {
	mem, ok := idx.backend.(*backend.Memory)
	if !ok {
		return wrapError("dump", fmt.Errorf("%w: dump is only supported for the in-memory backend", ErrSerdeFormat))
	}
	snap, err := mem.Snapshot()
	if err != nil {
		return wrapError("dump", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}
	hashersBlob, err := encodeHashers(idx.hashers)
	if err != nil {
		return wrapError("dump", fmt.Errorf("%w: %v", ErrSerdeFormat, err))
	}

	blob := intermediateBlob{
		Hashers:       hashersBlob,
		Mem:           snap,
		L:             idx.l,
		K:             idx.k,
		D:             idx.d,
		Seed:          idx.seed,
		Family:        idx.family,
		OnlyIndex:     idx.onlyIndex,
		MultiProbe:    idx.multiProbe,
		QueryDirected: idx.queryDirected,
		ProbeBudget:   idx.probeBudget,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blob); err != nil {
		return wrapError("dump", fmt.Errorf("%w: %v", ErrSerdeFormat, err))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return wrapError("dump", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}
	return nil
}

// Load deserializes a previously dumped index from path. Load(Dump(x))
// reproduces x's full query/insert behavior.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapError("load", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}

	var blob intermediateBlob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&blob); err != nil {
		return nil, wrapError("load", fmt.Errorf("%w: %v", ErrSerdeFormat, err))
	}

	hashers, err := decodeHashers(blob.Hashers)
	if err != nil {
		return nil, wrapError("load", fmt.Errorf("%w: %v", ErrSerdeFormat, err))
	}
	probers := buildProbers(hashers)

	mem, err := backend.RestoreMemory(blob.Mem)
	if err != nil {
		return nil, wrapError("load", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}
	count, err := mem.NumDatapoints()
	if err != nil {
		return nil, wrapError("load", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}

	return &Index{
		k: blob.K, l: blob.L, d: blob.D,
		seed:          blob.Seed,
		family:        blob.Family,
		hashers:       hashers,
		prober:        probers,
		backend:       mem,
		onlyIndex:     blob.OnlyIndex,
		multiProbe:    blob.MultiProbe,
		queryDirected: blob.QueryDirected,
		probeBudget:   blob.ProbeBudget,
		storedCount:   uint32(count),
		logger:        defaultLogger().With("family", blob.Family, "k", blob.K, "l", blob.L, "d", blob.D),
	}, nil
}
