package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureRLSRole idempotently ensures RestrictedRole exists with exactly
// the grants a tenant transaction needs: USAGE on the public schema and
// SELECT/INSERT/UPDATE/DELETE on every current and future table, and
// nothing that would let it bypass row-level policies (no BYPASSRLS, no
// SUPERUSER, no table ownership). Safe to call on every process start;
// callers should treat a failure here as fatal -- if the role can't be
// granted, every tenant transaction would silently run without isolation.
func EnsureRLSRole(ctx context.Context, pool *pgxpool.Pool) error {
	var exists bool
	err := pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", RestrictedRole).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check role existence: %w", err)
	}

	if !exists {
		// Role names cannot be parameterized; RestrictedRole is a
		// compile-time constant, never user input.
		stmt := fmt.Sprintf("CREATE ROLE %s NOLOGIN NOINHERIT", RestrictedRole)
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create role %s: %w", RestrictedRole, err)
		}
	}

	grants := []string{
		fmt.Sprintf("GRANT USAGE ON SCHEMA public TO %s", RestrictedRole),
		fmt.Sprintf("GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO %s", RestrictedRole),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT SELECT, INSERT, UPDATE, DELETE ON TABLES TO %s", RestrictedRole),
		fmt.Sprintf("GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA public TO %s", RestrictedRole),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT USAGE, SELECT ON SEQUENCES TO %s", RestrictedRole),
	}
	for _, stmt := range grants {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("grant to role %s: %w", RestrictedRole, err)
		}
	}

	return nil
}
