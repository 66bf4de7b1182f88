package store

import (
	"database/sql"
	"fmt"

	"github.com/franz/media-vault/internal/schemacache"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	currentSchemaVersion = 2
)

// Store owns the structured-record side of the vault: the asset catalogue
// and the usage edges that keep assets alive. All writes that touch
// columns introduced by later schema versions go through the adaptive
// writer so a lagging deployment never fails a user-visible action.
type Store struct {
	db       *sql.DB
	schema   *schemacache.Cache
	onAbsent func(table, field string)
}

// SetAbsentHook registers a callback invoked the first time a column is
// observed missing from the deployed schema. Used to surface drift into
// the event log.
func (s *Store) SetAbsentHook(fn func(table, field string)) {
	s.onAbsent = fn
}

// noteAbsent records a missing column in the cache and fires the hook on
// first observation
func (s *Store) noteAbsent(table, field string) {
	if s.schema.Get(table, field) != schemacache.Absent && s.onAbsent != nil {
		s.onAbsent(table, field)
	}
	s.schema.MarkAbsent(table, field)
}

// OpenOptions holds options for opening a database
type OpenOptions struct {
	NetworkOptimized bool // Apply network-optimized pragmas
	MaxSchemaVersion int  // Migrate only up to this version (0 = latest); simulates a lagging backend deployment
}

// Open opens or creates a SQLite database at the given path with default options
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates a SQLite database with custom options
func OpenWithOptions(path string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}

	// Open with pragmas for performance and reliability
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Usage edges cascade with their asset; sticks for the process
	// lifetime because there is only one connection
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{
		db:     db,
		schema: schemacache.New(),
	}

	if opts.NetworkOptimized {
		if err := store.applyNetworkPragmas(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply network pragmas: %w", err)
		}
	}

	target := opts.MaxSchemaVersion
	if target <= 0 || target > currentSchemaVersion {
		target = currentSchemaVersion
	}

	if err := store.migrate(target); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return store, nil
}

// applyNetworkPragmas applies SQLite optimizations for network filesystems
func (s *Store) applyNetworkPragmas() error {
	pragmas := []string{
		// NORMAL is safe with WAL mode; fsync only at checkpoints
		"PRAGMA synchronous = NORMAL",

		// Keep temp tables in memory instead of on network disk
		"PRAGMA temp_store = MEMORY",

		// 64MB cache to reduce network round-trips
		"PRAGMA cache_size = -64000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for custom queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// SchemaCache returns the store's schema adaptation cache
func (s *Store) SchemaCache() *schemacache.Cache {
	return s.schema
}

// SchemaVersion returns the applied schema version
func (s *Store) SchemaVersion() (int, error) {
	return s.getSchemaVersion()
}

// migrate applies database migrations up to the target version
func (s *Store) migrate(target int) error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version >= target {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Apply schema v1 - assets and usage edges
	if version < 1 && target >= 1 {
		if _, err := tx.Exec(schemaV1); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if err := s.setSchemaVersion(tx, 1); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	// Apply schema v2 - descriptive columns added after initial rollout
	if version < 2 && target >= 2 {
		if _, err := tx.Exec(schemaV2); err != nil {
			return fmt.Errorf("failed to apply schema v2: %w", err)
		}
		if err := s.setSchemaVersion(tx, 2); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	// Future migrations would go here:
	// if version < 3 { ... }

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Store) getSchemaVersion() (int, error) {
	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}

	if exists == 0 {
		// No schema yet
		return 0, nil
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion records a schema version in a transaction
func (s *Store) setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// Transaction executes a function within a transaction
func (s *Store) Transaction(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
