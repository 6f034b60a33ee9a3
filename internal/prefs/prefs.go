// Package prefs implements the SharedPreferences store spec.md §6 and §9
// describe: a small persisted key-value map holding whether the session
// has been greeted before, the user's home/work locations, morning/
// evening time windows, and the preferred temperature unit.
//
// Modeled as an injected interface (spec.md §9's "model it as an injected
// key-value interface so tests can substitute an in-memory map") with two
// implementations: a SQLite-backed Store for production, grounded on the
// reference architecture's internal/memory.Store (openDB pragma tuning,
// schema-version bookkeeping), and an in-memory MapStore for tests.
package prefs

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Well-known keys, spec.md §6.
const (
	KeyInitialized   = "sabrina-initialized"
	KeyLocationHome  = "context-$context.location.home"
	KeyLocationWork  = "context-$context.location.work"
	KeyTimeMorning   = "context-$context.time.morning"
	KeyTimeEvening   = "context-$context.time.evening"
	KeyPreferredTemp = "preferred-temperature"
)

// Preferences is the key-value contract the dialogue loop and its
// handlers depend on. Values are always strings; callers that need a
// structured value (e.g. a location) encode/decode it themselves.
type Preferences interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// IsInitialized reports whether the session has completed its first-run
// welcome (spec.md §4.8's Initialize step).
func IsInitialized(p Preferences) (bool, error) {
	v, ok, err := p.Get(KeyInitialized)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// MarkInitialized records that the session's welcome has been shown.
func MarkInitialized(p Preferences) error {
	return p.Set(KeyInitialized, "true")
}

// MapStore is an in-memory Preferences implementation for tests.
type MapStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMapStore creates an empty in-memory preferences store.
func NewMapStore() *MapStore {
	return &MapStore{values: make(map[string]string)}
}

func (m *MapStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MapStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MapStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Store is the SQLite-backed Preferences implementation.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed preferences store at
// path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	store := &Store{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS preferences (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return ensureSchemaVersion(s.db, 1, "initial preferences schema")
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}

func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM preferences WHERE key = ?", key)
	return err
}

func ensureSchemaVersion(db *sql.DB, version int, description string) error {
	var current sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return err
	}
	if !current.Valid || int(current.Int64) < version {
		_, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version)
		return err
	}
	return nil
}
