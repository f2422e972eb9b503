package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithSystemTx runs fn in a transaction on the pool's connecting role
// (the owner/superuser), without switching to RestrictedRole. Used for
// login's cross-tenant username lookup (C8) and invite registration (C9,
// per spec §4.9 step 1: "do not switch to the restricted role -- no
// authenticated actor yet") -- the handful of operations that genuinely
// precede any effective tenant. Every other tenant-scoped operation must
// go through the pipeline package's bind (or BindFromSnapshot) instead.
func WithSystemTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin system transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit system transaction: %w", err)
	}
	return nil
}
