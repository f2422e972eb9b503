package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/routecore/platform/internal/domain"
)

type MobileUserRepo struct{ db DBTX }

func NewMobileUserRepo(db DBTX) *MobileUserRepo { return &MobileUserRepo{db: db} }

const mobileUserColumns = `id, username, password_hash, email, phone, address,
	company_id, branch_id, role_id, driver_id, permissions, is_blocked, is_superadmin,
	created_at, updated_at`

func scanMobileUser(row pgx.Row) (domain.MobileUser, error) {
	var (
		u                                   domain.MobileUser
		id, companyID, branchID             pgtype.UUID
		roleID, driverID                    pgtype.UUID
		email, phone, addr                  pgtype.Text
	)
	err := row.Scan(&id, &u.Username, &u.PasswordHash, &email, &phone, &addr,
		&companyID, &branchID, &roleID, &driverID, &u.Permissions, &u.IsBlocked, &u.IsSuperAdmin,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MobileUser{}, ErrNotFound
		}
		return domain.MobileUser{}, err
	}
	u.ID = uuidStr(id)
	u.CompanyID = uuidStr(companyID)
	u.BranchID = uuidStr(branchID)
	u.RoleID = uuidStr(roleID)
	u.DriverID = uuidStr(driverID)
	u.Email = email.String
	u.Phone = phone.String
	u.Address = addr.String
	return u, nil
}

func (r *MobileUserRepo) GetByID(ctx context.Context, id string) (domain.MobileUser, error) {
	row := r.db.QueryRow(ctx, `SELECT `+mobileUserColumns+`
		FROM mobile_users WHERE id = $1 AND deleted_at IS NULL`, uuidParam(id))
	u, err := scanMobileUser(row)
	if err != nil {
		return domain.MobileUser{}, fmt.Errorf("get mobile user: %w", err)
	}
	return u, nil
}

// GetByCompanyAndUsername is the scoped lookup used when a mobile login
// request supplies companyId explicitly.
func (r *MobileUserRepo) GetByCompanyAndUsername(ctx context.Context, companyID, username string) (domain.MobileUser, error) {
	row := r.db.QueryRow(ctx, `SELECT `+mobileUserColumns+`
		FROM mobile_users WHERE company_id = $1 AND username = $2 AND deleted_at IS NULL`,
		uuidParam(companyID), username)
	u, err := scanMobileUser(row)
	if err != nil {
		return domain.MobileUser{}, fmt.Errorf("get mobile user by company+username: %w", err)
	}
	return u, nil
}

// ListByUsername is the unscoped lookup used when a mobile login omits
// companyId. More than one row means the caller must fail BAD_REQUEST
// asking for companyId.
func (r *MobileUserRepo) ListByUsername(ctx context.Context, username string) ([]domain.MobileUser, error) {
	rows, err := r.db.Query(ctx, `SELECT `+mobileUserColumns+`
		FROM mobile_users WHERE username = $1 AND deleted_at IS NULL`, username)
	if err != nil {
		return nil, fmt.Errorf("list mobile users by username: %w", err)
	}
	defer rows.Close()

	var out []domain.MobileUser
	for rows.Next() {
		u, err := scanMobileUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mobile user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ExistsLive reports whether a non-deleted mobile user with this
// (companyId, username) already exists -- the username-taken check
// invite registration runs before insert.
func (r *MobileUserRepo) ExistsLive(ctx context.Context, companyID, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM mobile_users
			WHERE company_id = $1 AND username = $2 AND deleted_at IS NULL)`,
		uuidParam(companyID), username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check mobile user exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new mobile user with the permission set granted by
// invite-code registration (C9 step 5).
func (r *MobileUserRepo) Create(ctx context.Context, u domain.MobileUser) (domain.MobileUser, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO mobile_users
			(id, username, password_hash, email, phone, address,
			 company_id, branch_id, role_id, driver_id, permissions, is_blocked, is_superadmin,
			 created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''),
			$6, NULLIF($7,'')::uuid, NULLIF($8,'')::uuid, $9, $10, $11, $12, now(), now())
		RETURNING `+mobileUserColumns,
		u.Username, u.PasswordHash, u.Email, u.Phone, u.Address,
		uuidParam(u.CompanyID), u.BranchID, u.RoleID, u.DriverID,
		u.Permissions, u.IsBlocked, u.IsSuperAdmin)
	created, err := scanMobileUser(row)
	if err != nil {
		return domain.MobileUser{}, fmt.Errorf("create mobile user: %w", err)
	}
	return created, nil
}
