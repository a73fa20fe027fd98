package lsh

import (
	"errors"
	"os"
	"reflect"
	"sort"
	"testing"
)

func TestSRPBucketMembershipScenario(t *testing.T) {
	idx, err := New(5, 3, 5).Seed(1).SRP()
	if err != nil {
		t.Fatalf("SRP: %v", err)
	}

	v1 := []float32{1, 2, 3, 1, 3}
	v2 := []float32{1.1, 2, 3, 1, 3.1}
	v3 := []float32{100, 100, 100, 100, 100.1}

	id1, err := idx.StoreVec(v1)
	if err != nil {
		t.Fatalf("store v1: %v", err)
	}
	id2, err := idx.StoreVec(v2)
	if err != nil {
		t.Fatalf("store v2: %v", err)
	}
	id3, err := idx.StoreVec(v3)
	if err != nil {
		t.Fatalf("store v3: %v", err)
	}

	ids, err := idx.QueryBucketIds(v1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	set := make(map[DataPointId]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	if !set[id1] || !set[id2] {
		t.Errorf("expected ids %d and %d in bucket, got %v", id1, id2, ids)
	}
	if set[id3] {
		t.Errorf("did not expect id %d (far vector) in bucket, got %v", id3, ids)
	}
}

func TestL2HashEqualityScenario(t *testing.T) {
	idx, err := New(7, 1, 5).Seed(1).L2(2.2)
	if err != nil {
		t.Fatalf("L2: %v", err)
	}
	h1, err := idx.hashers[0].HashQuery([]float32{1, 2, 3, 1, 3})
	if err != nil {
		t.Fatalf("hash v1: %v", err)
	}
	h2, err := idx.hashers[0].HashQuery([]float32{1.1, 2, 3, 1, 3.1})
	if err != nil {
		t.Fatalf("hash v2: %v", err)
	}
	if !h1.Equal(h2) {
		t.Errorf("expected close vectors to hash equally: %v vs %v", h1, h2)
	}
	h3, err := idx.hashers[0].HashQuery([]float32{100, 100, 100, 100, 100.1})
	if err != nil {
		t.Fatalf("hash v3: %v", err)
	}
	if h1.Equal(h3) {
		t.Errorf("expected far vector to hash differently, got %v == %v", h1, h3)
	}
}

func TestMIPSUnfittedFails(t *testing.T) {
	idx, err := New(4, 2, 3).Seed(1).MIPS(1.0, 0.8, 2)
	if err != nil {
		t.Fatalf("MIPS: %v", err)
	}
	_, err = idx.StoreVec([]float32{1, 2, 3})
	if err == nil {
		t.Fatal("expected NotFitted error before Fit")
	}
	if !errors.Is(err, ErrNotFitted) {
		t.Errorf("expected ErrNotFitted, got %v", err)
	}
}

func TestInsertDeleteRestoresMembership(t *testing.T) {
	idx, err := New(5, 3, 4).Seed(7).SRP()
	if err != nil {
		t.Fatalf("SRP: %v", err)
	}
	v := []float32{1, 2, 3, 4}
	other := []float32{5, 6, 7, 8}
	if _, err := idx.StoreVec(other); err != nil {
		t.Fatalf("store other: %v", err)
	}
	beforeIds, err := idx.QueryBucketIds(other)
	if err != nil {
		t.Fatalf("query before: %v", err)
	}

	if _, err := idx.StoreVec(v); err != nil {
		t.Fatalf("store v: %v", err)
	}
	if err := idx.DeleteVec(v); err != nil {
		t.Fatalf("delete v: %v", err)
	}

	afterIds, err := idx.QueryBucketIds(other)
	if err != nil {
		t.Fatalf("query after: %v", err)
	}
	sort.Slice(beforeIds, func(i, j int) bool { return beforeIds[i] < beforeIds[j] })
	sort.Slice(afterIds, func(i, j int) bool { return afterIds[i] < afterIds[j] })
	if !reflect.DeepEqual(beforeIds, afterIds) {
		t.Errorf("other vector's membership changed: before=%v after=%v", beforeIds, afterIds)
	}
}

func TestBatchVsParallelQueryAgree(t *testing.T) {
	idx, err := New(6, 4, 6).Seed(3).SRP()
	if err != nil {
		t.Fatalf("SRP: %v", err)
	}
	corpus := [][]float32{
		{1, 2, 3, 4, 5, 6},
		{6, 5, 4, 3, 2, 1},
		{1, 1, 1, 1, 1, 1},
		{-1, -2, -3, -4, -5, -6},
	}
	if _, err := idx.StoreVecs(corpus); err != nil {
		t.Fatalf("store_vecs: %v", err)
	}

	queries := [][]float32{
		{1, 2, 3, 4, 5, 6},
		{1, 1, 1, 1, 1, 1},
		{0, 0, 0, 0, 0, 0},
	}
	seq, err := idx.QueryBucketIdsBatch(queries)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	par, err := idx.QueryBucketIdsBatchPar(queries)
	if err != nil {
		t.Fatalf("batch_par: %v", err)
	}
	for i := range seq {
		sort.Slice(seq[i], func(a, b int) bool { return seq[i][a] < seq[i][b] })
		sort.Slice(par[i], func(a, b int) bool { return par[i][a] < par[i][b] })
		if !reflect.DeepEqual(seq[i], par[i]) {
			t.Errorf("query %d: sequential=%v parallel=%v", i, seq[i], par[i])
		}
	}
}

func TestDumpLoadRoundTrip(t *testing.T) {
	idx, err := New(5, 3, 4).Seed(42).SRP()
	if err != nil {
		t.Fatalf("SRP: %v", err)
	}
	corpus := [][]float32{
		{1, 2, 3, 4},
		{4, 3, 2, 1},
		{0, 0, 1, 1},
	}
	if _, err := idx.StoreVecs(corpus); err != nil {
		t.Fatalf("store_vecs: %v", err)
	}

	f, err := os.CreateTemp(t.TempDir(), "lsh-dump-*.bin")
	if err != nil {
		t.Fatalf("tempfile: %v", err)
	}
	path := f.Name()
	f.Close()

	if err := idx.Dump(path); err != nil {
		t.Fatalf("dump: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, v := range corpus {
		want, err := idx.QueryBucketIds(v)
		if err != nil {
			t.Fatalf("query original: %v", err)
		}
		got, err := loaded.QueryBucketIds(v)
		if err != nil {
			t.Fatalf("query loaded: %v", err)
		}
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		if !reflect.DeepEqual(want, got) {
			t.Errorf("round trip mismatch for %v: want %v, got %v", v, want, got)
		}
	}
}

func TestSeedDeterminism(t *testing.T) {
	idx1, err := New(5, 3, 4).Seed(99).L2(1.5)
	if err != nil {
		t.Fatalf("idx1: %v", err)
	}
	idx2, err := New(5, 3, 4).Seed(99).L2(1.5)
	if err != nil {
		t.Fatalf("idx2: %v", err)
	}
	v := []float32{1, 2, 3, 4}
	for t_ := 0; t_ < 3; t_++ {
		h1, err := idx1.hashers[t_].HashQuery(v)
		if err != nil {
			t.Fatalf("hash1: %v", err)
		}
		h2, err := idx2.hashers[t_].HashQuery(v)
		if err != nil {
			t.Fatalf("hash2: %v", err)
		}
		if !h1.Equal(h2) {
			t.Errorf("table %d: same seed produced different hashes: %v vs %v", t_, h1, h2)
		}
	}
}

func TestBuilderIncreaseStorage(t *testing.T) {
	idx, err := New(5, 2, 4).Seed(1).IncreaseStorage(100).SRP()
	if err != nil {
		t.Fatalf("SRP: %v", err)
	}
	if _, err := idx.StoreVec([]float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("store_vec: %v", err)
	}
}

func TestDimensionMismatch(t *testing.T) {
	idx, err := New(5, 2, 4).Seed(1).SRP()
	if err != nil {
		t.Fatalf("SRP: %v", err)
	}
	_, err = idx.StoreVec([]float32{1, 2, 3})
	if !errors.Is(err, ErrDim) {
		t.Errorf("expected ErrDim, got %v", err)
	}
}

func TestSQLFileHashersTakePrecedenceOnReopen(t *testing.T) {
	path := t.TempDir() + "/reopen.db3"

	idx, err := New(6, 3, 4).Seed(5).SetDatabaseFile(path).L2(2.0)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	corpus := [][]float32{
		{1, 2, 3, 4},
		{1.05, 2, 3, 4.05},
		{50, 60, 70, 80},
	}
	if _, err := idx.StoreVecs(corpus); err != nil {
		t.Fatalf("store_vecs: %v", err)
	}
	q := []float32{1, 2, 3, 4}
	want, err := idx.QueryBucketIds(q)
	if err != nil {
		t.Fatalf("query first session: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A different seed would generate different hashers; the stored set
	// must win so the reopened index reproduces the first session.
	reopened, err := New(6, 3, 4).Seed(999).SetDatabaseFile(path).L2(2.0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.QueryBucketIds(q)
	if err != nil {
		t.Fatalf("query reopened: %v", err)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if !reflect.DeepEqual(want, got) {
		t.Errorf("reopened index diverged: first session %v, reopened %v", want, got)
	}
}

func TestMultiProbeReturnsSupersetOfBase(t *testing.T) {
	corpus := [][]float32{
		{1, 2, 3, 4},
		{2, 3, 4, 5},
		{-1, -2, -3, -4},
		{10, 0, 10, 0},
	}
	q := []float32{1.2, 2.1, 3.3, 4.1}

	base, err := New(4, 2, 4).Seed(11).L2(1.0)
	if err != nil {
		t.Fatalf("base: %v", err)
	}
	if _, err := base.StoreVecs(corpus); err != nil {
		t.Fatalf("store base: %v", err)
	}
	baseIds, err := base.QueryBucketIds(q)
	if err != nil {
		t.Fatalf("query base: %v", err)
	}

	probing, err := New(4, 2, 4).Seed(11).MultiProbe(8).L2(1.0)
	if err != nil {
		t.Fatalf("multi-probe: %v", err)
	}
	if _, err := probing.StoreVecs(corpus); err != nil {
		t.Fatalf("store multi-probe: %v", err)
	}
	probedIds, err := probing.QueryBucketIds(q)
	if err != nil {
		t.Fatalf("query multi-probe: %v", err)
	}

	probed := make(map[DataPointId]bool, len(probedIds))
	for _, id := range probedIds {
		probed[id] = true
	}
	for _, id := range baseIds {
		if !probed[id] {
			t.Errorf("multi-probe dropped base result %d: base=%v probed=%v", id, baseIds, probedIds)
		}
	}
}

func TestQueryDirectedProbingSupersetOfBase(t *testing.T) {
	corpus := [][]float32{
		{1, 2, 3, 4},
		{1.1, 2.1, 3.1, 4.1},
		{9, 8, 7, 6},
	}
	q := []float32{1, 2, 3, 4}

	base, err := New(5, 3, 4).Seed(21).L2(1.5)
	if err != nil {
		t.Fatalf("base: %v", err)
	}
	if _, err := base.StoreVecs(corpus); err != nil {
		t.Fatalf("store base: %v", err)
	}
	baseIds, err := base.QueryBucketIds(q)
	if err != nil {
		t.Fatalf("query base: %v", err)
	}

	directed, err := New(5, 3, 4).Seed(21).MultiProbe(10).QueryDirected().L2(1.5)
	if err != nil {
		t.Fatalf("query-directed: %v", err)
	}
	if _, err := directed.StoreVecs(corpus); err != nil {
		t.Fatalf("store directed: %v", err)
	}
	directedIds, err := directed.QueryBucketIds(q)
	if err != nil {
		t.Fatalf("query directed: %v", err)
	}

	got := make(map[DataPointId]bool, len(directedIds))
	for _, id := range directedIds {
		got[id] = true
	}
	for _, id := range baseIds {
		if !got[id] {
			t.Errorf("query-directed probing dropped base result %d", id)
		}
	}
}

func TestIndexOnlyRefusesVectorRecovery(t *testing.T) {
	idx, err := New(5, 2, 3).Seed(1).OnlyIndex().SRP()
	if err != nil {
		t.Fatalf("SRP: %v", err)
	}
	v := []float32{1, 2, 3}
	if _, err := idx.StoreVec(v); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := idx.QueryBucket(v); !errors.Is(err, ErrIndexOnly) {
		t.Errorf("expected ErrIndexOnly, got %v", err)
	}
	if _, err := idx.QueryBucketIds(v); err != nil {
		t.Errorf("QueryBucketIds should still work index-only: %v", err)
	}
}

func TestSQLMemoryTransactionThroughIndex(t *testing.T) {
	idx, err := New(4, 2, 3).Seed(1).SQLMemory().SRP()
	if err != nil {
		t.Fatalf("SQLMemory: %v", err)
	}
	defer idx.Close()

	if err := idx.InitTransaction(); err != nil {
		t.Fatalf("init_transaction: %v", err)
	}
	v := []float32{1, 2, 3}
	if _, err := idx.StoreVec(v); err != nil {
		t.Fatalf("store in tx: %v", err)
	}
	if err := idx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ids, err := idx.QueryBucketIds(v)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ids) == 0 {
		t.Error("committed vector not found in its own bucket")
	}
}

func TestLenCountsDistinctVectors(t *testing.T) {
	idx, err := New(5, 2, 3).Seed(1).SRP()
	if err != nil {
		t.Fatalf("SRP: %v", err)
	}
	v := []float32{1, 2, 3}
	if _, err := idx.StoreVec(v); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := idx.StoreVec(v); err != nil {
		t.Fatalf("re-store: %v", err)
	}
	if _, err := idx.StoreVec([]float32{4, 5, 6}); err != nil {
		t.Fatalf("store second: %v", err)
	}
	if got := idx.Len(); got != 2 {
		t.Errorf("Len() = %d after inserting 2 distinct vectors, want 2", got)
	}
}

func TestUpdateByIdxMovesVector(t *testing.T) {
	idx, err := New(6, 3, 4).Seed(13).L2(1.0)
	if err != nil {
		t.Fatalf("L2: %v", err)
	}
	oldV := []float32{1, 2, 3, 4}
	newV := []float32{50, 60, 70, 80}
	id, err := idx.StoreVec(oldV)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := idx.UpdateByIdx(id, newV, oldV); err != nil {
		t.Fatalf("update_by_idx: %v", err)
	}

	ids, err := idx.QueryBucketIds(newV)
	if err != nil {
		t.Fatalf("query new location: %v", err)
	}
	found := false
	for _, got := range ids {
		if got == id {
			found = true
		}
	}
	if !found {
		t.Errorf("id %d not found at its new hash location, got %v", id, ids)
	}
}
