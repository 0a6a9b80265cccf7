package db

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL engine behind a DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Schemas are embedded at compile time and applied by EnsureSchema.
// Every natural key of the import pipeline carries a unique index.
var (
	//go:embed schema_sqlite.sql
	sqliteSchemaSQL string

	//go:embed schema_postgres.sql
	postgresSchemaSQL string
)

// DB wraps a database connection with write serialization
type DB struct {
	conn    *sqlx.DB
	dialect Dialect
	writeMu sync.Mutex // Serializes imports so a lookup-then-create never interleaves in-process
}

// ParseDialect maps a config value to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", s)
	}
}

// Connect opens a database for the given dialect. For SQLite the dsn is a
// file path; for Postgres it is a connection URL.
func Connect(dialect Dialect, dsn string) (*DB, error) {
	switch dialect {
	case SQLite:
		return connectSQLite(dsn)
	case Postgres:
		return connectPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

// connectSQLite opens a SQLite database with WAL mode and foreign keys enabled
func connectSQLite(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time. A single connection keeps
	// an open import transaction from deadlocking against a second conn.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			log.Printf("Warning: failed to set %s: %v", pragma, err)
		}
	}

	log.Printf("Connected to SQLite database: %s", dbPath)
	return &DB{conn: conn, dialect: SQLite}, nil
}

func connectPostgres(databaseURL string) (*DB, error) {
	conn, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Connected to PostgreSQL database")
	return &DB{conn: conn, dialect: Postgres}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection for use by repositories
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// Dialect reports which engine the connection talks to.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Ping checks database connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// LockWrite acquires the write mutex. Must be paired with UnlockWrite.
func (db *DB) LockWrite() {
	db.writeMu.Lock()
}

// UnlockWrite releases the write mutex.
func (db *DB) UnlockWrite() {
	db.writeMu.Unlock()
}

// WithTx runs fn inside a transaction that is committed only if fn returns
// nil. The caller is responsible for holding the write lock if needed.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
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

// EnsureSchema creates tables if they don't exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.LockWrite()
	defer db.UnlockWrite()

	if _, err := db.conn.ExecContext(ctx, SchemaSQL(db.dialect)); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("Database schema ensured (%s)", db.dialect)
	return nil
}

// SchemaSQL returns the embedded schema for a dialect (e.g., for init scripts).
func SchemaSQL(dialect Dialect) string {
	if dialect == Postgres {
		return postgresSchemaSQL
	}
	return sqliteSchemaSQL
}

// NullSafeEq renders an equality predicate on column that also matches
// NULL against NULL.
func (d Dialect) NullSafeEq(column string) string {
	if d == Postgres {
		return column + " IS NOT DISTINCT FROM ?"
	}
	return column + " IS ?"
}
