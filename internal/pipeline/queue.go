package pipeline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/routecore/platform/internal/reqctx"
	"github.com/routecore/platform/internal/storage"
)

// BindFromSnapshot is C11's consume-side bind phase: unlike the HTTP
// pipeline, it trusts the envelope's fields outright instead of
// re-reading the actor from the database -- the transport is internal
// and already authenticated, so there is no equivalent of a forged
// bearer token to defend against here.
func BindFromSnapshot(ctx context.Context, pool *pgxpool.Pool, snap reqctx.Snapshot, handler func(context.Context) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin queue transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := storage.SwitchToRestrictedRole(ctx, tx); err != nil {
		return fmt.Errorf("switch to restricted role: %w", err)
	}
	if err := storage.SetSessionVars(ctx, tx, snap.IsSuperAdmin, snap.CompanyID); err != nil {
		return fmt.Errorf("bind session vars: %w", err)
	}

	rc := &reqctx.RequestContext{
		CompanyID:    snap.CompanyID,
		BranchID:     snap.BranchID,
		UserID:       snap.UserID,
		ActorType:    snap.ActorType,
		IsSuperAdmin: snap.IsSuperAdmin,
		RoleName:     snap.RoleName,
		Permissions:  snap.Permissions,
		Tx:           tx,
	}
	installed := reqctx.Run(ctx, rc)

	if err := handler(installed); err != nil {
		return err // deferred Rollback fires
	}

	return tx.Commit(ctx)
}
