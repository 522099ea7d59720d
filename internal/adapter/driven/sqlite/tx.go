package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/focal/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Transactor = (*DB)(nil)

type txKey struct{}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InTx runs fn in a transaction on the writer connection. A context that
// already carries a transaction joins it instead of nesting.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// writer returns the ambient transaction or the writer pool.
// The writer pool holds a single connection, so repositories must never use
// db.Writer directly while a transaction is open.
func (db *DB) writer(ctx context.Context) querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.Writer
}

// reader returns the ambient transaction, so reads observe uncommitted writes
// of the same unit of work, or the reader pool.
func (db *DB) reader(ctx context.Context) querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.Reader
}

func txFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}
