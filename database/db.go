package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"coparent/backend/config"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB is the process-wide connection pool.
var DB *sql.DB

// Driver is the driver DB was opened with. Queries are written with ?
// placeholders and rebound for postgres.
var Driver = DriverSQLite

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InitDB opens the database selected by cfg and stores it in DB.
func InitDB(cfg *config.Config) error {
	var err error
	switch cfg.DBDriver {
	case DriverPostgres:
		DB, err = CreatePostgresDB(cfg.DatabaseURL)
	case DriverSQLite, "sqlite", "":
		DB, err = OpenSQLite(cfg.SQLitePath)
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
	if err != nil {
		return err
	}
	if cfg.DBDriver == DriverPostgres {
		Driver = DriverPostgres
	} else {
		Driver = DriverSQLite
	}
	return nil
}

// OpenSQLite opens a sqlite database at path with foreign keys enforced.
func OpenSQLite(path string) (*sql.DB, error) {
	// Connection parameters to better handle concurrency
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=10000", path)
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	log.Info().Str("path", path).Msg("Opened sqlite database")
	return db, nil
}

// Rebind rewrites ? placeholders into $n when running on postgres.
func Rebind(query string) string {
	if Driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func Exec(ctx context.Context, q Querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, Rebind(query), args...)
}

func Query(ctx context.Context, q Querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, Rebind(query), args...)
}

func QueryRow(ctx context.Context, q Querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, Rebind(query), args...)
}

// WithTx runs fn inside a transaction on DB. The transaction is committed
// when fn returns nil and rolled back otherwise.
func WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error().Err(rbErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err comes from a UNIQUE or primary key
// constraint on either driver.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
