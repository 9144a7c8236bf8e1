package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the embedded single-file repository used for local runs
// and tests.
type SQLiteStore struct {
	*sqlRepo
	db *sql.DB

	mu    sync.Mutex
	locks map[int64]bool
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" gives a
// private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database.sqlite_path is required")
	}
	dsn := path
	if path != ":memory:" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	} else {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps transactions serial and the in-memory database alive
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	return &SQLiteStore{
		sqlRepo: newSQLRepo(sqlDBHandle{sqlHandle: sqlHandle{q: db}, db: db}),
		db:      db,
		locks:   make(map[int64]bool),
	}, nil
}

// Migrate applies the embedded schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// TryAdvisoryLock emulates a postgres advisory lock within the process.
func (s *SQLiteStore) TryAdvisoryLock(_ context.Context, key int64) (func(), bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] {
		return nil, false, nil
	}
	s.locks[key] = true

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.locks, key)
			s.mu.Unlock()
		})
	}
	return unlock, true, nil
}
