package lsh

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/vecindex/golsh/internal/rng"
	"github.com/vecindex/golsh/pkg/hash"
)

func init() {
	gob.Register(&hash.SRP{})
	gob.Register(&hash.L2{})
	gob.Register(&hash.MIPS{})
}

// buildProbers recovers the QueryDirectedProber view of each table's
// hasher (non-nil only for L2), used after Load to restore
// query-directed multi-probing.
func buildProbers(hashers []hash.VecHash) []hash.QueryDirectedProber {
	probers := make([]hash.QueryDirectedProber, len(hashers))
	for i, h := range hashers {
		if p, ok := h.(hash.QueryDirectedProber); ok {
			probers[i] = p
		}
	}
	return probers
}

// encodeHashers gob-encodes a hasher slice for Backend.StoreHashers.
func encodeHashers(hashers []hash.VecHash) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(hashers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHashers(data []byte) ([]hash.VecHash, error) {
	var hashers []hash.VecHash
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&hashers); err != nil {
		return nil, err
	}
	return hashers, nil
}

// SRP finalizes the builder into a sign-random-projections index.
func (b *Builder) SRP() (*Index, error) {
	if b.err != nil {
		return nil, b.err
	}
	r := newRand(b.seed)
	hashers := make([]hash.VecHash, b.l)
	for i := 0; i < b.l; i++ {
		h, err := hash.NewSRP(b.k, b.d, newRand(rng.Derive(r)))
		if err != nil {
			return nil, wrapError("srp", err)
		}
		hashers[i] = h
	}
	blob, err := encodeHashers(hashers)
	if err != nil {
		return nil, wrapError("srp", fmt.Errorf("%w: %v", ErrSerdeFormat, err))
	}
	return b.finalize("srp", hashers, nil, blob)
}

// L2 finalizes the builder into a Euclidean-distance index with slot
// width r.
func (b *Builder) L2(r float32) (*Index, error) {
	if b.err != nil {
		return nil, b.err
	}
	if r <= 0 {
		return nil, wrapError("l2", ErrInvalidParam)
	}
	rnd := newRand(b.seed)
	hashers := make([]hash.VecHash, b.l)
	probers := make([]hash.QueryDirectedProber, b.l)
	for i := 0; i < b.l; i++ {
		h, err := hash.NewL2(b.d, r, b.k, newRand(rng.Derive(rnd)))
		if err != nil {
			return nil, wrapError("l2", err)
		}
		hashers[i] = h
		probers[i] = h
	}
	blob, err := encodeHashers(hashers)
	if err != nil {
		return nil, wrapError("l2", fmt.Errorf("%w: %v", ErrSerdeFormat, err))
	}
	return b.finalize("l2", hashers, probers, blob)
}

// MIPS finalizes the builder into a maximum-inner-product index.
// Corpus vectors must be passed to Index.Fit before any StoreVec call;
// insertion fails with ErrNotFitted otherwise.
func (b *Builder) MIPS(r, u float32, m int) (*Index, error) {
	if b.err != nil {
		return nil, b.err
	}
	if r <= 0 || u <= 0 || u >= 1 || m < 1 {
		return nil, wrapError("mips", ErrInvalidParam)
	}
	rnd := newRand(b.seed)
	hashers := make([]hash.VecHash, b.l)
	probers := make([]hash.QueryDirectedProber, b.l)
	for i := 0; i < b.l; i++ {
		h, err := hash.NewMIPS(b.d, r, u, m, b.k, newRand(rng.Derive(rnd)))
		if err != nil {
			return nil, wrapError("mips", err)
		}
		hashers[i] = h
		probers[i] = nil
	}
	blob, err := encodeHashers(hashers)
	if err != nil {
		return nil, wrapError("mips", fmt.Errorf("%w: %v", ErrSerdeFormat, err))
	}
	return b.finalize("mips", hashers, probers, blob)
}

// Fit sets the MIPS normalization constant M = max ||x|| across vectors
// for every table's hasher. Required before the first StoreVec call on
// a MIPS index; HashPut otherwise fails with ErrNotFitted.
func (idx *Index) Fit(vectors [][]float32) error {
	if idx.family != "mips" {
		return nil
	}
	for _, h := range idx.hashers {
		mp, ok := h.(*hash.MIPS)
		if !ok {
			continue
		}
		mp.Fit(vectors)
	}
	return nil
}
