package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store is the history store: one SQLite file holding conversations,
// messages and group participants. A Store is closed until Initialize
// succeeds, and every read or write on a closed Store fails with
// ErrNotInitialized.
type Store struct {
	path   string
	logger *zap.Logger

	mu sync.RWMutex
	db *sql.DB
}

// New returns a closed store for the SQLite file at path. The logger is the
// store's only diagnostic sink; nil discards diagnostics.
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger.Named("store")}
}

// Open is New followed by Initialize.
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := New(path, logger)
	if err := s.Initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Initialize opens the backing file, creating it and its directory when
// absent, and makes sure the schema exists. Calling it on an open store is a
// no-op.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return s.fail("create store dir", err)
	}

	db, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return s.fail("open db", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return s.fail("ping db", err)
	}

	result, err := migrateUp(db)
	if err != nil {
		_ = db.Close()
		return s.fail("migrate", err)
	}
	if result.Changed {
		s.logger.Info("schema applied", zap.Uint("version", result.Version))
	}

	s.db = db
	s.logger.Info("store initialized", zap.String("path", s.path), zap.Uint("schema_version", result.Version))
	return nil
}

// Close releases the database handle. Closing a closed store is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return s.fail("close db", err)
	}
	s.logger.Info("store closed", zap.String("path", s.path))
	return nil
}

// fail logs an engine error and wraps it in a StorageError.
func (s *Store) fail(op string, err error) error {
	s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
	return &StorageError{Op: op, Err: err}
}

// invalid logs a rejected filter value and wraps ErrInvalidFilter.
func (s *Store) invalid(field, value string) error {
	s.logger.Warn("invalid filter", zap.String("field", field), zap.String("value", value))
	return fmt.Errorf("%w: %s %q is not an ISO-8601 date", ErrInvalidFilter, field, value)
}
