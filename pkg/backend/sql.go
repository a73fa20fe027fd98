package backend

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	roaring "github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/vecindex/golsh/internal/encoding"
	"github.com/vecindex/golsh/pkg/hash"
)

// SQL is the file-backed Backend variant. SQLite cannot efficiently
// index a variable-length BLOB by equality, so membership rows are
// looked up by an indexed xxhash digest of the encoded hash with an
// exact blob recheck, rather than by a string map key as Memory uses.
type SQL struct {
	mu sync.RWMutex

	db        *sql.DB
	l         int
	onlyIndex bool
	tx        *sql.Tx
}

// OpenSQL opens (creating if needed) a SQLite-backed store at path with
// l hash tables.
func OpenSQL(path string, l int, onlyIndex bool) (*SQL, error) {
	if l <= 0 {
		return nil, ErrInvalidParam
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQL{db: db, l: l, onlyIndex: onlyIndex}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS membership (
			table_idx INTEGER NOT NULL,
			hash_digest INTEGER NOT NULL,
			hash_blob BLOB NOT NULL,
			point_id INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_membership_lookup ON membership(table_idx, hash_digest)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_membership_unique ON membership(table_idx, hash_digest, hash_blob, point_id)`,
		`CREATE TABLE IF NOT EXISTS datapoints (
			id INTEGER PRIMARY KEY,
			vector BLOB,
			content_key BLOB UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS hashers (blob BLOB NOT NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	return nil
}

func (s *SQL) execer() interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *SQL) Put(h hash.Hash, v []float32, t int) (uint32, error) {
	if t < 0 || t >= s.l {
		return 0, ErrInvalidParam
	}
	key, err := encoding.EncodeVector(v)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ex := s.execer()

	var id uint32
	row := ex.QueryRow(`SELECT id FROM datapoints WHERE content_key = ?`, key)
	err = row.Scan(&id)
	switch err {
	case nil:
		// existing datapoint, reuse id
	case sql.ErrNoRows:
		vecBlob := key
		if s.onlyIndex {
			vecBlob = nil
		}
		res, execErr := ex.Exec(`INSERT INTO datapoints(vector, content_key) VALUES (?, ?)`, vecBlob, key)
		if execErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrIO, execErr)
		}
		last, execErr := res.LastInsertId()
		if execErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrIO, execErr)
		}
		id = uint32(last)
	default:
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}

	hashBlob := encoding.EncodeHash(h)
	digest := xxhash.Sum64(hashBlob)
	if _, err := ex.Exec(
		`INSERT OR IGNORE INTO membership(table_idx, hash_digest, hash_blob, point_id) VALUES (?, ?, ?, ?)`,
		t, int64(digest), hashBlob, id,
	); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return id, nil
}

func (s *SQL) Delete(h hash.Hash, v []float32, t int) error {
	if t < 0 || t >= s.l {
		return ErrInvalidParam
	}
	key, err := encoding.EncodeVector(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ex := s.execer()
	var id uint32
	row := ex.QueryRow(`SELECT id FROM datapoints WHERE content_key = ?`, key)
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	hashBlob := encoding.EncodeHash(h)
	digest := xxhash.Sum64(hashBlob)
	if _, err := ex.Exec(
		`DELETE FROM membership WHERE table_idx = ? AND hash_digest = ? AND hash_blob = ? AND point_id = ?`,
		t, int64(digest), hashBlob, id,
	); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (s *SQL) UpdateByIdx(oldHash, newHash hash.Hash, id uint32, t int) error {
	if t < 0 || t >= s.l {
		return ErrInvalidParam
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ex := s.execer()

	oldBlob := encoding.EncodeHash(oldHash)
	oldDigest := xxhash.Sum64(oldBlob)
	if _, err := ex.Exec(
		`DELETE FROM membership WHERE table_idx = ? AND hash_digest = ? AND hash_blob = ? AND point_id = ?`,
		t, int64(oldDigest), oldBlob, id,
	); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	newBlob := encoding.EncodeHash(newHash)
	newDigest := xxhash.Sum64(newBlob)
	if _, err := ex.Exec(
		`INSERT OR IGNORE INTO membership(table_idx, hash_digest, hash_blob, point_id) VALUES (?, ?, ?, ?)`,
		t, int64(newDigest), newBlob, id,
	); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (s *SQL) QueryBucket(h hash.Hash, t int) (*Bucket, error) {
	if t < 0 || t >= s.l {
		return nil, ErrInvalidParam
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hashBlob := encoding.EncodeHash(h)
	digest := xxhash.Sum64(hashBlob)

	rows, err := s.execer().Query(
		`SELECT point_id FROM membership WHERE table_idx = ? AND hash_digest = ? AND hash_blob = ?`,
		t, int64(digest), hashBlob,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer rows.Close()

	bucket := roaring.New()
	found := false
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		bucket.Add(id)
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return bucket, nil
}

func (s *SQL) IdxToDatapoint(id uint32) ([]float32, error) {
	if s.onlyIndex {
		return nil, ErrIndexOnly
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte
	row := s.execer().QueryRow(`SELECT vector FROM datapoints WHERE id = ?`, id)
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if blob == nil {
		return nil, ErrIndexOnly
	}
	return encoding.DecodeVector(blob)
}

func (s *SQL) IncreaseStorage(n int) error {
	return nil
}

func (s *SQL) StoreHashers(blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	row := s.execer().QueryRow(`SELECT COUNT(*) FROM hashers`)
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if count > 0 {
		return ErrHashersStored
	}
	if _, err := s.execer().Exec(`INSERT INTO hashers(blob) VALUES (?)`, blob); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (s *SQL) LoadHashers() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte
	row := s.execer().QueryRow(`SELECT blob FROM hashers LIMIT 1`)
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return blob, nil
}

func (s *SQL) Describe() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	for t := 0; t < s.l; t++ {
		rows, err := s.execer().Query(
			`SELECT hash_digest, COUNT(*) FROM membership WHERE table_idx = ? GROUP BY hash_digest`, t,
		)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrIO, err)
		}
		var sizes []float64
		for rows.Next() {
			var digest, cnt int64
			if err := rows.Scan(&digest, &cnt); err != nil {
				rows.Close()
				return "", fmt.Errorf("%w: %v", ErrIO, err)
			}
			sizes = append(sizes, float64(cnt))
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return "", fmt.Errorf("%w: %v", ErrIO, err)
		}
		rows.Close()
		formatTableStats(&b, t, sizes)
	}
	return b.String(), nil
}

func (s *SQL) UniqueHashInts() map[hash.Primitive]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[hash.Primitive]struct{})
	rows, err := s.execer().Query(`SELECT DISTINCT hash_blob FROM membership`)
	if err != nil {
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			continue
		}
		h := encoding.DecodeHash(blob)
		for _, v := range h {
			out[v] = struct{}{}
		}
	}
	return out
}

func (s *SQL) NumTables() int { return s.l }

func (s *SQL) NumDatapoints() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	row := s.execer().QueryRow(`SELECT COUNT(*) FROM datapoints`)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return n, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) InitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	s.tx = tx
	return nil
}

func (s *SQL) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return ErrNoTransaction
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

var (
	_ Backend       = (*SQL)(nil)
	_ Transactional = (*SQL)(nil)
)
