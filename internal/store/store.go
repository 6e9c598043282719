package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a uniqueness violation.
var ErrConflict = errors.New("already exists")

// DBTX abstracts over a pool and a transaction so every query can run in
// either context.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides hand-written Postgres queries for the shop.
type Store struct {
	db DBTX
}

// New constructs a Store bound to the provided pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// WithTx returns a Store whose queries run inside the given transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func mapRowErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
