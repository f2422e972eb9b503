package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/routecore/platform/internal/domain"
)

var ErrNotFound = errors.New("not found")

type WebUserRepo struct{ db DBTX }

func NewWebUserRepo(db DBTX) *WebUserRepo { return &WebUserRepo{db: db} }

func scanWebUser(row pgx.Row) (domain.WebUser, error) {
	var (
		u                         domain.WebUser
		id, companyID, branchID   pgtype.UUID
		roleID                    pgtype.UUID
		email, phone, addr, image pgtype.Text
	)
	err := row.Scan(&id, &u.Username, &u.PasswordHash, &email, &phone, &addr, &image,
		&companyID, &branchID, &roleID, &u.IsSuperAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WebUser{}, ErrNotFound
		}
		return domain.WebUser{}, err
	}
	u.ID = uuidStr(id)
	u.CompanyID = uuidStr(companyID)
	u.BranchID = uuidStr(branchID)
	u.RoleID = uuidStr(roleID)
	u.Email = email.String
	u.Phone = phone.String
	u.Address = addr.String
	u.ImageURL = image.String
	return u, nil
}

const webUserColumns = `id, username, password_hash, email, phone, address, image_url,
	company_id, branch_id, role_id, is_superadmin, created_at, updated_at`

// GetByID is called from C5's refresh phase: the authoritative row, not
// the token's claims, decides the effective (companyId, isSuperAdmin) for
// the transaction.
func (r *WebUserRepo) GetByID(ctx context.Context, id string) (domain.WebUser, error) {
	row := r.db.QueryRow(ctx, `SELECT `+webUserColumns+`
		FROM web_users WHERE id = $1 AND deleted_at IS NULL`, uuidParam(id))
	u, err := scanWebUser(row)
	if err != nil {
		return domain.WebUser{}, fmt.Errorf("get web user: %w", err)
	}
	return u, nil
}

// GetByUsername looks a web user up by the globally-unique username,
// called by login (C8) under RLS bypass since the caller's home tenant
// isn't known yet (see spec open question (c) on the uniqueness
// asymmetry).
func (r *WebUserRepo) GetByUsername(ctx context.Context, username string) (domain.WebUser, error) {
	row := r.db.QueryRow(ctx, `SELECT `+webUserColumns+`
		FROM web_users WHERE username = $1 AND deleted_at IS NULL`, username)
	u, err := scanWebUser(row)
	if err != nil {
		return domain.WebUser{}, fmt.Errorf("get web user by username: %w", err)
	}
	return u, nil
}

// ExistsByUsername is used by the bootstrap seed so re-running it is
// idempotent instead of failing on a unique-constraint violation.
func (r *WebUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM web_users WHERE username = $1 AND deleted_at IS NULL)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check web user exists: %w", err)
	}
	return exists, nil
}

// Create inserts a web user. CompanyID/BranchID/RoleID are optional
// (NULL) -- a superadmin seeded at bootstrap has none of the three.
func (r *WebUserRepo) Create(ctx context.Context, u domain.WebUser) (domain.WebUser, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO web_users
			(id, username, password_hash, email, phone, address, image_url,
			 company_id, branch_id, role_id, is_superadmin, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''),
			NULLIF($7,'')::uuid, NULLIF($8,'')::uuid, NULLIF($9,'')::uuid, $10, now(), now())
		RETURNING `+webUserColumns,
		u.Username, u.PasswordHash, u.Email, u.Phone, u.Address, u.ImageURL,
		u.CompanyID, u.BranchID, u.RoleID, u.IsSuperAdmin)
	created, err := scanWebUser(row)
	if err != nil {
		return domain.WebUser{}, fmt.Errorf("create web user: %w", err)
	}
	return created, nil
}
