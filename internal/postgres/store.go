// Package postgres implements the service.Store contract on PostgreSQL
// using pgx. All read-check-write sequences in the service layer run
// through InTx; unique constraints on carts, cart lines, and orders
// backstop concurrent writers.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ostrem/kasse/internal/domain"
	"github.com/ostrem/kasse/internal/service"
)

// DBTX is the subset of pgx executed against either the pool or an open
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL-backed service.Store.
type Store struct {
	pool *pgxpool.Pool
	db   DBTX
}

// Compile-time check that Store implements service.Store.
var _ service.Store = (*Store)(nil)

// NewStore creates a store over the connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// InTx runs fn against a transaction-bound store. A nil return commits, any
// error rolls back. Nested calls reuse the open transaction.
func (s *Store) InTx(ctx context.Context, fn func(service.Store) error) error {
	if _, open := s.db.(pgx.Tx); open {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "store.tx", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{pool: s.pool, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "store.tx", "failed to commit transaction")
	}
	return nil
}

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// mapError translates pgx errors into domain errors: no rows becomes the
// caller-supplied not-found error, a unique violation becomes a conflict,
// anything else is internal.
func mapError(err error, op, message string, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.Conflict(op, message)
	}
	return domain.Internal(err, op, message)
}
