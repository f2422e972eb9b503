package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/routecore/platform/internal/domain"
)

type InviteRepo struct{ db DBTX }

func NewInviteRepo(db DBTX) *InviteRepo { return &InviteRepo{db: db} }

const inviteColumns = `id, code, company_id, branch_id, driver_id, role_id, contact_email,
	expires_at, used_at, used_by_mobile_user_id, created_by_id, created_at`

func scanInvite(row pgx.Row) (domain.DriverInvite, error) {
	var (
		inv                                           domain.DriverInvite
		id, companyID, branchID, driverID, roleID     pgtype.UUID
		usedBy, createdBy                              pgtype.UUID
		contactEmail                                   pgtype.Text
	)
	err := row.Scan(&id, &inv.Code, &companyID, &branchID, &driverID, &roleID, &contactEmail,
		&inv.ExpiresAt, &inv.UsedAt, &usedBy, &createdBy, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DriverInvite{}, ErrNotFound
		}
		return domain.DriverInvite{}, err
	}
	inv.ID = uuidStr(id)
	inv.CompanyID = uuidStr(companyID)
	inv.BranchID = uuidStr(branchID)
	inv.DriverID = uuidStr(driverID)
	inv.RoleID = uuidStr(roleID)
	inv.UsedByMobileUserID = uuidStr(usedBy)
	inv.CreatedByID = uuidStr(createdBy)
	inv.ContactEmail = contactEmail.String
	return inv, nil
}

// GetUnusedByCode is the read C9 step 2 performs: an invite is eligible
// only while usedAt is still null.
func (r *InviteRepo) GetUnusedByCode(ctx context.Context, code string) (domain.DriverInvite, error) {
	row := r.db.QueryRow(ctx, `SELECT `+inviteColumns+`
		FROM driver_invites WHERE code = $1 AND used_at IS NULL`, code)
	inv, err := scanInvite(row)
	if err != nil {
		return domain.DriverInvite{}, fmt.Errorf("get unused invite: %w", err)
	}
	return inv, nil
}

// MarkUsed is C9 step 6, conditioned on the row still being unused so a
// racing double-submit can't both succeed.
func (r *InviteRepo) MarkUsed(ctx context.Context, inviteID, mobileUserID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE driver_invites SET used_at = now(), used_by_mobile_user_id = $1
		WHERE id = $2 AND used_at IS NULL`, uuidParam(mobileUserID), uuidParam(inviteID))
	if err != nil {
		return fmt.Errorf("mark invite used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark invite used: %w", ErrNotFound)
	}
	return nil
}

// ExistsActiveForDriver reports whether driverID already has an active
// (unused) invite, expired or not -- the same condition as the schema's
// idx_driver_invites_active_per_driver -- enforced as CONFLICT by the
// invite create handler per the data-model invariant of at most one
// active invite per driver.
func (r *InviteRepo) ExistsActiveForDriver(ctx context.Context, driverID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM driver_invites
			WHERE driver_id = $1 AND used_at IS NULL)`, uuidParam(driverID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active invite: %w", err)
	}
	return exists, nil
}

func (r *InviteRepo) Create(ctx context.Context, inv domain.DriverInvite) (domain.DriverInvite, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO driver_invites
			(id, code, company_id, branch_id, driver_id, role_id, contact_email,
			 expires_at, used_at, used_by_mobile_user_id, created_by_id, created_at)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,'')::uuid, $4, NULLIF($5,'')::uuid, NULLIF($6,''),
			$7, NULL, NULL, $8, now())
		RETURNING `+inviteColumns,
		inv.Code, uuidParam(inv.CompanyID), inv.BranchID, uuidParam(inv.DriverID), inv.RoleID,
		inv.ContactEmail, inv.ExpiresAt, uuidParam(inv.CreatedByID))
	created, err := scanInvite(row)
	if err != nil {
		return domain.DriverInvite{}, fmt.Errorf("create invite: %w", err)
	}
	return created, nil
}
