package pipeline

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/routecore/platform/internal/storage"
)

// RepoActorLookup is the default ActorLookup, backed directly by the
// storage repositories running on the transaction the pipeline just
// opened.
type RepoActorLookup struct{}

func (RepoActorLookup) GetWebUser(ctx context.Context, tx pgx.Tx, id string) (string, string, bool, string, []string, error) {
	u, err := storage.NewWebUserRepo(tx).GetByID(ctx, id)
	if err != nil {
		return "", "", false, "", nil, err
	}
	roleName, perms, err := loadRole(ctx, tx, u.RoleID)
	if err != nil {
		return "", "", false, "", nil, err
	}
	return u.CompanyID, u.BranchID, u.IsSuperAdmin, roleName, perms, nil
}

func (RepoActorLookup) GetMobileUser(ctx context.Context, tx pgx.Tx, id string) (string, string, bool, string, []string, error) {
	u, err := storage.NewMobileUserRepo(tx).GetByID(ctx, id)
	if err != nil {
		return "", "", false, "", nil, err
	}
	if u.IsBlocked {
		return "", "", false, "", nil, storage.ErrNotFound
	}
	roleName, _, err := loadRole(ctx, tx, u.RoleID)
	if err != nil {
		return "", "", false, "", nil, err
	}
	// Mobile permissions live on the mobile_user row itself, not only on
	// the role, so a driver's default grant (mission:read:self etc.) works
	// without a bespoke role per company.
	return u.CompanyID, u.BranchID, u.IsSuperAdmin, roleName, u.Permissions, nil
}

func loadRole(ctx context.Context, tx pgx.Tx, roleID string) (string, []string, error) {
	if roleID == "" {
		return "", nil, nil
	}
	role, err := storage.NewRoleRepo(tx).GetByID(ctx, roleID)
	if err != nil {
		return "", nil, err
	}
	return role.Name, role.Authorizations, nil
}
