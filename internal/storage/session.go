package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SwitchToRestrictedRole issues SET LOCAL ROLE app_rls on tx. From this
// point every statement on tx is subject to row-level policies, and the
// switch reverts automatically when the transaction ends -- the
// connection is returned to the pool under its original role.
func SwitchToRestrictedRole(ctx context.Context, tx pgx.Tx) error {
	stmt := fmt.Sprintf("SET LOCAL ROLE %s", RestrictedRole)
	if _, err := tx.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("switch to restricted role: %w", err)
	}
	return nil
}

// SetSessionVars binds the two session variables the tenant-isolation
// policy of every table reads. Both are transaction-scoped (set_config's
// third argument is true), so no value ever survives past this
// transaction on a pooled connection.
func SetSessionVars(ctx context.Context, tx pgx.Tx, isSuperAdmin bool, companyID string) error {
	_, err := tx.Exec(ctx, "SELECT set_config('app.is_superadmin', $1, true)", boolStr(isSuperAdmin))
	if err != nil {
		return fmt.Errorf("set app.is_superadmin: %w", err)
	}
	_, err = tx.Exec(ctx, "SELECT set_config('app.current_company_id', $1, true)", companyID)
	if err != nil {
		return fmt.Errorf("set app.current_company_id: %w", err)
	}
	return nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
