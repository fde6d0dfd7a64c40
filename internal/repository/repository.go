package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrCredentialAlreadySet is returned when a user's provider credential was stored before.
var ErrCredentialAlreadySet = errors.New("credential already set")

// StorageError is a persistence failure. The batch it belongs to was rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Repository provides database operations
type Repository struct {
	db     *sql.DB
	driver string
}

// NewRepository initializes a new repository for the given driver
func NewRepository(db *sql.DB, driver string) *Repository {
	return &Repository{db: db, driver: driver}
}

// Open connects to the database and verifies the connection
func Open(driver, dsn string) (*sql.DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// a single connection keeps :memory: databases alive and serializes writers
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate creates the schema if it does not exist yet
func (r *Repository) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if r.driver == DriverSQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into the driver's positional form
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		credential TEXT,
		home_currency INTEGER NOT NULL DEFAULT 980,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_id TEXT NOT NULL,
		masked_pan TEXT NOT NULL DEFAULT '',
		iban TEXT NOT NULL DEFAULT '',
		currency_code INTEGER NOT NULL,
		balance DOUBLE PRECISION NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE (user_id, account_id)
	)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_id TEXT NOT NULL DEFAULT '',
		amount NUMERIC(14,2) NOT NULL,
		cash_type TEXT NOT NULL,
		occurred_at BIGINT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		provider_id TEXT NOT NULL DEFAULT '',
		dedup_key TEXT NOT NULL,
		UNIQUE (user_id, dedup_key)
	)`,
	`CREATE INDEX IF NOT EXISTS expenses_user_occurred_idx ON expenses (user_id, occurred_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		credential TEXT,
		home_currency INTEGER NOT NULL DEFAULT 980,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_id TEXT NOT NULL,
		masked_pan TEXT NOT NULL DEFAULT '',
		iban TEXT NOT NULL DEFAULT '',
		currency_code INTEGER NOT NULL,
		balance REAL NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (user_id, account_id)
	)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_id TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		cash_type TEXT NOT NULL,
		occurred_at INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		provider_id TEXT NOT NULL DEFAULT '',
		dedup_key TEXT NOT NULL,
		UNIQUE (user_id, dedup_key)
	)`,
	`CREATE INDEX IF NOT EXISTS expenses_user_occurred_idx ON expenses (user_id, occurred_at)`,
}
