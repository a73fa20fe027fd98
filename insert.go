package lsh

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// refreshStoredCount re-reads the backend's distinct-datapoint count
// after an insert, so re-inserting existing content (which reuses its
// id) does not inflate Len.
func (idx *Index) refreshStoredCount() {
	if n, err := idx.backend.NumDatapoints(); err == nil {
		idx.storedCount = uint32(n)
	}
}

// hashJob is one (hash, vector, table) unit of producer work during a
// batch insert.
type hashJob struct {
	hash []int8
	v    []float32
	t    int
}

// StoreVec hashes v against every table and inserts it into the
// backend, returning its assigned id.
func (idx *Index) StoreVec(v []float32) (DataPointId, error) {
	if err := validateVec(idx, v); err != nil {
		return 0, err
	}
	var id DataPointId
	for t, h := range idx.hashers {
		hv, err := h.HashPut(v)
		if err != nil {
			return 0, wrapError("store_vec", translateHashErr(err))
		}
		got, err := idx.backend.Put(hv, v, t)
		if err != nil {
			return 0, wrapError("store_vec", fmt.Errorf("%w: %v", ErrBackendIO, err))
		}
		id = got
	}
	idx.refreshStoredCount()
	idx.logger.Debug("stored vector", "id", id)
	return id, nil
}

// StoreVecs hashes and inserts a batch, returning ids in input order.
// One goroutine computes (hash, vector, table) for every point and
// table and feeds a bounded channel; the calling goroutine is the sole
// consumer applying backend.Put, so the first occurrence of each
// vector deterministically gets the next free id.
func (idx *Index) StoreVecs(vs [][]float32) ([]DataPointId, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	for _, v := range vs {
		if err := validateVec(idx, v); err != nil {
			return nil, err
		}
	}
	if err := idx.backend.IncreaseStorage(len(vs)); err != nil {
		return nil, wrapError("store_vecs", fmt.Errorf("%w: %v", ErrBackendIO, err))
	}

	jobs := make(chan hashJob, 4*idx.l)
	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer close(jobs)
		for _, v := range vs {
			for t, h := range idx.hashers {
				hv, err := h.HashPut(v)
				if err != nil {
					return translateHashErr(err)
				}
				jobs <- hashJob{hash: hv, v: v, t: t}
			}
		}
		return nil
	})

	ids := make([]DataPointId, 0, len(vs))
	var lastErr error
	for job := range jobs {
		id, err := idx.backend.Put(job.hash, job.v, job.t)
		if err != nil && lastErr == nil {
			lastErr = err
		}
		if job.t == 0 {
			ids = append(ids, id)
		}
	}
	if err := g.Wait(); err != nil {
		return nil, wrapError("store_vecs", err)
	}
	if lastErr != nil {
		return nil, wrapError("store_vecs", fmt.Errorf("%w: %v", ErrBackendIO, lastErr))
	}
	idx.refreshStoredCount()
	return ids, nil
}

// StoreArray inserts a 2D array of row vectors. Go has no distinct
// ndarray type, so this is StoreVecs under another name.
func (idx *Index) StoreArray(vs [][]float32) ([]DataPointId, error) {
	return idx.StoreVecs(vs)
}

// UpdateByIdx moves id's membership from oldV's hash to newV's hash in
// every table.
func (idx *Index) UpdateByIdx(id DataPointId, newV, oldV []float32) error {
	if err := validateVec(idx, newV); err != nil {
		return err
	}
	if err := validateVec(idx, oldV); err != nil {
		return err
	}
	for t, h := range idx.hashers {
		newHash, err := h.HashPut(newV)
		if err != nil {
			return wrapError("update_by_idx", translateHashErr(err))
		}
		oldHash, err := h.HashPut(oldV)
		if err != nil {
			return wrapError("update_by_idx", translateHashErr(err))
		}
		if err := idx.backend.UpdateByIdx(oldHash, newHash, id, t); err != nil {
			return wrapError("update_by_idx", fmt.Errorf("%w: %v", ErrBackendIO, err))
		}
	}
	return nil
}

// DeleteVec removes v from every table. A vector never stored, or
// already removed, is a no-op per the backend contract.
func (idx *Index) DeleteVec(v []float32) error {
	if err := validateVec(idx, v); err != nil {
		return err
	}
	for t, h := range idx.hashers {
		hv, err := h.HashPut(v)
		if err != nil {
			return wrapError("delete_vec", translateHashErr(err))
		}
		if err := idx.backend.Delete(hv, v, t); err != nil {
			return wrapError("delete_vec", fmt.Errorf("%w: %v", ErrBackendIO, err))
		}
	}
	return nil
}
