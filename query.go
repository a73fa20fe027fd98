package lsh

import (
	"context"
	"fmt"
	"runtime"

	roaring "github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/semaphore"

	"github.com/vecindex/golsh/pkg/backend"
	"github.com/vecindex/golsh/pkg/hash"
	"github.com/vecindex/golsh/pkg/probe"
)

// probesForTable builds the list of hash keys to look up in table t for
// query v: the base hash always first, followed by multi-probe
// perturbations when enabled. Each table spends the full probe budget
// against its own base hash.
func (idx *Index) probesForTable(t int, v []float32) ([]hash.Hash, error) {
	h := idx.hashers[t]
	base, err := h.HashQuery(v)
	if err != nil {
		return nil, translateHashErr(err)
	}
	probes := []hash.Hash{base}
	if !idx.multiProbe {
		return probes, nil
	}

	var perturbs []hash.Hash
	if idx.queryDirected && t < len(idx.prober) && idx.prober[t] != nil {
		perturbs, err = probe.QueryDirected(idx.prober[t], v, base, idx.probeBudget)
		if err != nil {
			return nil, err
		}
	} else {
		perturbs = probe.StepWise(idx.k, idx.probeBudget)
	}

	for _, p := range perturbs {
		probed := make(hash.Hash, idx.k)
		for i := range base {
			probed[i] = base[i] + p[i]
		}
		probes = append(probes, probed)
	}
	return probes, nil
}

// queryBucketUnion returns the union, across all L tables, of every
// bucket reached by v's probe list in that table.
func (idx *Index) queryBucketUnion(v []float32) (*roaring.Bitmap, error) {
	union := roaring.New()
	for t := range idx.hashers {
		probes, err := idx.probesForTable(t, v)
		if err != nil {
			return nil, wrapError("query_bucket", err)
		}
		for _, p := range probes {
			bucket, err := idx.backend.QueryBucket(p, t)
			if err != nil {
				if err == backend.ErrNotFound {
					continue
				}
				return nil, wrapError("query_bucket", fmt.Errorf("%w: %v", ErrBackendIO, err))
			}
			union.Or(bucket)
		}
	}
	return union, nil
}

// QueryBucket returns the vectors of every id in the union of matching
// buckets across all tables. Fails with ErrIndexOnly if the backend
// stores no vectors.
func (idx *Index) QueryBucket(v []float32) ([][]float32, error) {
	if err := validateVec(idx, v); err != nil {
		return nil, err
	}
	if idx.onlyIndex {
		return nil, wrapError("query_bucket", ErrIndexOnly)
	}
	union, err := idx.queryBucketUnion(v)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, 0, union.GetCardinality())
	it := union.Iterator()
	for it.HasNext() {
		id := it.Next()
		vec, err := idx.backend.IdxToDatapoint(id)
		if err != nil {
			return nil, wrapError("query_bucket", fmt.Errorf("%w: %v", ErrBackendIO, err))
		}
		out = append(out, vec)
	}
	return out, nil
}

// QueryBucketIds returns the ids of the union of matching buckets
// across all tables.
func (idx *Index) QueryBucketIds(v []float32) ([]DataPointId, error) {
	if err := validateVec(idx, v); err != nil {
		return nil, err
	}
	union, err := idx.queryBucketUnion(v)
	if err != nil {
		return nil, err
	}
	ids := make([]DataPointId, 0, union.GetCardinality())
	it := union.Iterator()
	for it.HasNext() {
		ids = append(ids, it.Next())
	}
	return ids, nil
}

// QueryBucketIdsBatch runs QueryBucketIds over every vector in vs,
// sequentially, preserving input order.
func (idx *Index) QueryBucketIdsBatch(vs [][]float32) ([][]DataPointId, error) {
	out := make([][]DataPointId, len(vs))
	for i, v := range vs {
		ids, err := idx.QueryBucketIds(v)
		if err != nil {
			return nil, err
		}
		out[i] = ids
	}
	return out, nil
}

// QueryBucketIdsBatchPar runs QueryBucketIds over every vector in vs
// concurrently, bounding the number of in-flight workers to
// runtime.GOMAXPROCS(0) via a weighted semaphore. Each worker only
// reads the backend, so results match QueryBucketIdsBatch exactly.
func (idx *Index) QueryBucketIdsBatchPar(vs [][]float32) ([][]DataPointId, error) {
	out := make([][]DataPointId, len(vs))
	errs := make([]error, len(vs))

	sem := semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
	ctx := context.Background()

	done := make(chan struct{}, len(vs))
	for i, v := range vs {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, wrapError("query_bucket_ids_batch_par", err)
		}
		go func(i int, v []float32) {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()
			ids, err := idx.QueryBucketIds(v)
			out[i], errs[i] = ids, err
		}(i, v)
	}
	for range vs {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Describe returns per-table bucket-size diagnostics from the backend.
func (idx *Index) Describe() (string, error) {
	s, err := idx.backend.Describe()
	if err != nil {
		return "", wrapError("describe", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}
	return s, nil
}

// InitTransaction begins a buffered transaction on a SQL backend.
func (idx *Index) InitTransaction() error {
	tx, ok := idx.backend.(backend.Transactional)
	if !ok {
		return wrapError("init_transaction", backend.ErrUnsupported)
	}
	if err := tx.InitTransaction(); err != nil {
		return wrapError("init_transaction", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}
	return nil
}

// Commit flushes a buffered transaction on a SQL backend.
func (idx *Index) Commit() error {
	tx, ok := idx.backend.(backend.Transactional)
	if !ok {
		return wrapError("commit", backend.ErrUnsupported)
	}
	if err := tx.Commit(); err != nil {
		return wrapError("commit", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}
	return nil
}

// IncreaseStorage hints the backend to pre-reserve capacity for n
// additional data points.
func (idx *Index) IncreaseStorage(n int) error {
	if err := idx.backend.IncreaseStorage(n); err != nil {
		return wrapError("increase_storage", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}
	return nil
}
