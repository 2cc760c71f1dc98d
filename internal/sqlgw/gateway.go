// Package sqlgw is the thin promise-like facade over the SQL engine that
// every other component in this module goes through. It normalizes result
// sets, maps driver errors to the package's sentinel errors, and swallows
// the one error class ("duplicate column") that additive schema evolution
// expects to see.
package sqlgw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Errors mirror this component's error kinds.
var (
	// ErrCardinality is returned by Get when more than one row matches.
	ErrCardinality = errors.New("sqlgw: more than one row returned")
	// ErrNoRows is sql.ErrNoRows, for callers that scan a single row
	// directly. Get reports an empty result as ok == false with a nil error.
	ErrNoRows = sql.ErrNoRows
)

// SqlError wraps a driver-level failure executing a statement.
type SqlError struct {
	SQL string
	Err error
}

func (e *SqlError) Error() string { return fmt.Sprintf("sqlgw: %s: %v", e.SQL, e.Err) }
func (e *SqlError) Unwrap() error { return e.Err }

// Gateway wraps a *sql.DB with the run/query/get/insert/try/transaction
// surface common to a SQL-backed store. All methods are safe for concurrent
// use; the underlying *sql.DB pools its own connections.
type Gateway struct {
	db  *sql.DB
	log *logrus.Entry
}

// New wraps an already-open database handle.
func New(db *sql.DB, log *logrus.Entry) *Gateway {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Gateway{db: db, log: log.WithField("component", "sqlgw")}
}

// DB exposes the underlying handle for callers that need raw access
// (schema introspection, trigger installation) outside the Row/Query
// abstraction.
func (g *Gateway) DB() *sql.DB { return g.db }

// Run executes one DDL/DML statement outside of any caller-managed
// transaction and returns the driver's result set.
func (g *Gateway) Run(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &SqlError{SQL: query, Err: err}
	}
	return res, nil
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// RowMapper builds a value of type T from a scannable row. Implementations
// live next to the entity they hydrate (see internal/store).
type RowMapper[T any] func(s Scanner) (T, error)

// Query executes a query and materializes every row via mapFn.
func Query[T any](ctx context.Context, g *Gateway, mapFn RowMapper[T], query string, args ...any) ([]T, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &SqlError{SQL: query, Err: err}
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := mapFn(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlgw: scanning row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &SqlError{SQL: query, Err: err}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Get expects exactly one row. It returns ErrCardinality if more than one
// row is found and (zero value, false, nil) if the result set is empty.
func Get[T any](ctx context.Context, g *Gateway, mapFn RowMapper[T], query string, args ...any) (T, bool, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	var zero T
	if err != nil {
		return zero, false, &SqlError{SQL: query, Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		return zero, false, rows.Err()
	}
	v, err := mapFn(rows)
	if err != nil {
		return zero, false, fmt.Errorf("sqlgw: scanning row: %w", err)
	}
	if rows.Next() {
		return zero, false, ErrCardinality
	}
	return v, true, rows.Err()
}

// FindOne returns the first row or (zero, false, nil) if there are none. It
// never fails on cardinality; callers passing a LIMIT 1 query rely on that.
func FindOne[T any](ctx context.Context, g *Gateway, mapFn RowMapper[T], query string, args ...any) (T, bool, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	var zero T
	if err != nil {
		return zero, false, &SqlError{SQL: query, Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		return zero, false, rows.Err()
	}
	v, err := mapFn(rows)
	if err != nil {
		return zero, false, fmt.Errorf("sqlgw: scanning row: %w", err)
	}
	return v, true, nil
}

// Insert runs an INSERT ... RETURNING-style statement and returns the first
// returned row, if any. A warning is logged if more than one row comes
// back.
func Insert[T any](ctx context.Context, g *Gateway, mapFn RowMapper[T], query string, args ...any) (T, bool, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	var zero T
	if err != nil {
		return zero, false, &SqlError{SQL: query, Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		return zero, false, rows.Err()
	}
	v, err := mapFn(rows)
	if err != nil {
		return zero, false, fmt.Errorf("sqlgw: scanning row: %w", err)
	}
	extra := 0
	for rows.Next() {
		extra++
	}
	if extra > 0 {
		g.log.WithField("extra_rows", extra).Warn("insert returned more than one row")
	}
	return v, true, rows.Err()
}

// Try runs a statement, treating a "duplicate column name" driver error as
// success-but-false rather than a failure. It exists solely for idempotent
// ALTER TABLE ... ADD COLUMN statements.
func (g *Gateway) Try(ctx context.Context, query string, args ...any) (bool, error) {
	_, err := g.db.ExecContext(ctx, query, args...)
	if err == nil {
		return true, nil
	}
	if isDuplicateColumn(err) {
		g.log.WithField("sql", query).Info("duplicate column, skipping")
		return false, nil
	}
	return false, &SqlError{SQL: query, Err: err}
}

func isDuplicateColumn(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}

// Tx is the subset of *sql.Tx that transaction bodies use.
type Tx struct {
	tx  *sql.Tx
	log *logrus.Entry
}

// Exec runs a statement within the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &SqlError{SQL: query, Err: err}
	}
	return res, nil
}

// Transaction runs body inside one engine-level transaction, committing on
// success and rolling back if body (or the commit itself) fails.
func (g *Gateway) Transaction(ctx context.Context, body func(tx *Tx) error) error {
	sqlTx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return &SqlError{SQL: "BEGIN", Err: err}
	}
	tx := &Tx{tx: sqlTx, log: g.log}
	if err := body(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			g.log.WithError(rbErr).Warn("rollback after body error also failed")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &SqlError{SQL: "COMMIT", Err: err}
	}
	return nil
}
