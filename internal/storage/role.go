package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/routecore/platform/internal/domain"
)

type RoleRepo struct{ db DBTX }

func NewRoleRepo(db DBTX) *RoleRepo { return &RoleRepo{db: db} }

func (r *RoleRepo) GetByID(ctx context.Context, id string) (domain.Role, error) {
	var (
		role      domain.Role
		rid, cid  pgtype.UUID
		desc      pgtype.Text
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, authorizations, company_id, created_at, updated_at
		FROM roles WHERE id = $1 AND deleted_at IS NULL`, uuidParam(id)).
		Scan(&rid, &role.Name, &desc, &role.Authorizations, &cid, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Role{}, fmt.Errorf("role not found: %w", err)
		}
		return domain.Role{}, fmt.Errorf("get role: %w", err)
	}
	role.ID = uuidStr(rid)
	role.CompanyID = uuidStr(cid)
	role.Description = desc.String
	return role, nil
}
