package backend

import (
	"fmt"
)

// SQLMemory is the SQL-in-memory Backend variant: identical schema and
// query paths to SQL, opened against SQLite's in-memory DSN, with a
// ToDB snapshot that streams the live database out to a file.
type SQLMemory struct {
	*SQL
}

// OpenSQLMemory opens a SQLite database backed entirely by memory.
func OpenSQLMemory(l int, onlyIndex bool) (*SQLMemory, error) {
	// cache=shared keeps the in-memory database alive across the pool's
	// connections; a private in-memory DSN would otherwise vanish once
	// the first connection used to create the schema is returned to the
	// pool.
	inner, err := OpenSQL("file::memory:?cache=shared", l, onlyIndex)
	if err != nil {
		return nil, err
	}
	inner.db.SetMaxOpenConns(1)
	return &SQLMemory{SQL: inner}, nil
}

// ToDB backs up the live in-memory database to a file at path.
func (m *SQLMemory) ToDB(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", path)); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

var _ Backend = (*SQLMemory)(nil)
var _ Transactional = (*SQLMemory)(nil)
var _ Snapshotter = (*SQLMemory)(nil)
