package backend

import (
	"fmt"
	"sync"

	roaring "github.com/RoaringBitmap/roaring/v2"

	"github.com/vecindex/golsh/internal/encoding"
	"github.com/vecindex/golsh/pkg/hash"
)

// Memory is the in-memory Backend variant: L maps from encoded hash to
// bucket, plus an optional id->vector map. Ids are assigned
// monotonically from 0 on first insertion of each distinct vector.
type Memory struct {
	mu sync.RWMutex

	onlyIndex bool
	tables    []map[string]*roaring.Bitmap

	vectors   map[uint32][]float32
	vecToID   map[string]uint32
	nextID    uint32

	hashers       []byte
	hashersStored bool
}

// NewMemory constructs an in-memory backend with L empty tables.
func NewMemory(l int, onlyIndex bool) (*Memory, error) {
	if l <= 0 {
		return nil, ErrInvalidParam
	}
	tables := make([]map[string]*roaring.Bitmap, l)
	for i := range tables {
		tables[i] = make(map[string]*roaring.Bitmap)
	}
	m := &Memory{
		onlyIndex: onlyIndex,
		tables:    tables,
		vecToID:   make(map[string]uint32),
	}
	if !onlyIndex {
		m.vectors = make(map[uint32][]float32)
	}
	return m, nil
}

func vectorKey(v []float32) (string, error) {
	b, err := encoding.EncodeVector(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func hashKey(h hash.Hash) string {
	return string(encoding.EncodeHash(h))
}

func (m *Memory) Put(h hash.Hash, v []float32, t int) (uint32, error) {
	if t < 0 || t >= len(m.tables) {
		return 0, ErrInvalidParam
	}
	key, err := vectorKey(v)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, exists := m.vecToID[key]
	if !exists {
		id = m.nextID
		m.nextID++
		m.vecToID[key] = id
		if m.vectors != nil {
			stored := make([]float32, len(v))
			copy(stored, v)
			m.vectors[id] = stored
		}
	}

	hk := hashKey(h)
	bucket, ok := m.tables[t][hk]
	if !ok {
		bucket = roaring.New()
		m.tables[t][hk] = bucket
	}
	bucket.Add(id)
	return id, nil
}

func (m *Memory) Delete(h hash.Hash, v []float32, t int) error {
	if t < 0 || t >= len(m.tables) {
		return ErrInvalidParam
	}
	key, err := vectorKey(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, exists := m.vecToID[key]
	if !exists {
		return nil
	}
	hk := hashKey(h)
	if bucket, ok := m.tables[t][hk]; ok {
		bucket.Remove(id)
		if bucket.IsEmpty() {
			delete(m.tables[t], hk)
		}
	}
	return nil
}

func (m *Memory) UpdateByIdx(oldHash, newHash hash.Hash, id uint32, t int) error {
	if t < 0 || t >= len(m.tables) {
		return ErrInvalidParam
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	oldKey := hashKey(oldHash)
	if bucket, ok := m.tables[t][oldKey]; ok {
		bucket.Remove(id)
		if bucket.IsEmpty() {
			delete(m.tables[t], oldKey)
		}
	}
	newKey := hashKey(newHash)
	bucket, ok := m.tables[t][newKey]
	if !ok {
		bucket = roaring.New()
		m.tables[t][newKey] = bucket
	}
	bucket.Add(id)
	return nil
}

func (m *Memory) QueryBucket(h hash.Hash, t int) (*Bucket, error) {
	if t < 0 || t >= len(m.tables) {
		return nil, ErrInvalidParam
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket, ok := m.tables[t][hashKey(h)]
	if !ok {
		return nil, ErrNotFound
	}
	return bucket.Clone(), nil
}

func (m *Memory) IdxToDatapoint(id uint32) ([]float32, error) {
	if m.onlyIndex {
		return nil, ErrIndexOnly
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.vectors[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) IncreaseStorage(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vectors != nil && n > 0 {
		grown := make(map[uint32][]float32, len(m.vectors)+n)
		for k, v := range m.vectors {
			grown[k] = v
		}
		m.vectors = grown
	}
	return nil
}

func (m *Memory) StoreHashers(blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashersStored {
		return ErrHashersStored
	}
	m.hashers = append([]byte(nil), blob...)
	m.hashersStored = true
	return nil
}

func (m *Memory) LoadHashers() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hashersStored {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.hashers...), nil
}

func (m *Memory) Describe() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return describeTables(m.tables), nil
}

func (m *Memory) UniqueHashInts() map[hash.Primitive]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[hash.Primitive]struct{})
	for _, table := range m.tables {
		for k := range table {
			for _, b := range []byte(k) {
				out[hash.Primitive(b)] = struct{}{}
			}
		}
	}
	return out
}

func (m *Memory) NumTables() int { return len(m.tables) }

func (m *Memory) NumDatapoints() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vecToID), nil
}

func (m *Memory) Close() error { return nil }

// MemorySnapshot is the gob-serializable view of Memory's state, used
// by the root package's Dump/Load.
type MemorySnapshot struct {
	TableKeys [][]string
	TableVals [][][]uint32
	Vectors   map[uint32][]float32
	VecToID   map[string]uint32
	NextID    uint32
	Hashers   []byte
	OnlyIndex bool
}

// Snapshot captures Memory's full state for persistence.
func (m *Memory) Snapshot() (*MemorySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &MemorySnapshot{
		TableKeys: make([][]string, len(m.tables)),
		TableVals: make([][][]uint32, len(m.tables)),
		VecToID:   m.vecToID,
		NextID:    m.nextID,
		Hashers:   m.hashers,
		OnlyIndex: m.onlyIndex,
	}
	for i, table := range m.tables {
		keys := make([]string, 0, len(table))
		vals := make([][]uint32, 0, len(table))
		for k, bucket := range table {
			keys = append(keys, k)
			vals = append(vals, bucket.ToArray())
		}
		s.TableKeys[i] = keys
		s.TableVals[i] = vals
	}
	if m.vectors != nil {
		s.Vectors = m.vectors
	}
	return s, nil
}

// RestoreMemory rebuilds Memory's state from a previously captured Snapshot.
func RestoreMemory(s *MemorySnapshot) (*Memory, error) {
	if s == nil {
		return nil, fmt.Errorf("backend: nil snapshot")
	}
	tables := make([]map[string]*roaring.Bitmap, len(s.TableKeys))
	for i := range tables {
		table := make(map[string]*roaring.Bitmap, len(s.TableKeys[i]))
		for j, k := range s.TableKeys[i] {
			table[k] = roaring.BitmapOf(s.TableVals[i][j]...)
		}
		tables[i] = table
	}
	m := &Memory{
		onlyIndex:     s.OnlyIndex,
		tables:        tables,
		vectors:       s.Vectors,
		vecToID:       s.VecToID,
		nextID:        s.NextID,
		hashers:       s.Hashers,
		hashersStored: len(s.Hashers) > 0,
	}
	if m.vecToID == nil {
		m.vecToID = make(map[string]uint32)
	}
	return m, nil
}

var _ Backend = (*Memory)(nil)
