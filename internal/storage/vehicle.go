package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/routecore/platform/internal/domain"
)

type VehicleRepo struct{ db DBTX }

func NewVehicleRepo(db DBTX) *VehicleRepo { return &VehicleRepo{db: db} }

const vehicleColumns = `id, company_id, branch_id, name, plate, created_at, updated_at`

func scanVehicle(row pgx.Row) (domain.Vehicle, error) {
	var (
		v                     domain.Vehicle
		id, companyID, branch pgtype.UUID
	)
	err := row.Scan(&id, &companyID, &branch, &v.Name, &v.Plate, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return domain.Vehicle{}, err
	}
	v.ID = uuidStr(id)
	v.CompanyID = uuidStr(companyID)
	v.BranchID = uuidStr(branch)
	return v, nil
}

// ListByBranch lists vehicles visible to the caller's effective branch.
// The companyId scoping itself is enforced by RLS; branchId narrowing is
// the application-level rule from C3.getEffectiveBranchId -- callers pass
// the already-resolved effective branch, never the raw query parameter.
func (r *VehicleRepo) ListByBranch(ctx context.Context, branchID string) ([]domain.Vehicle, error) {
	rows, err := r.db.Query(ctx, `SELECT `+vehicleColumns+`
		FROM vehicles WHERE branch_id = $1 AND deleted_at IS NULL ORDER BY created_at`, uuidParam(branchID))
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var out []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VehicleRepo) Create(ctx context.Context, companyID, branchID, name, plate string) (domain.Vehicle, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO vehicles (id, company_id, branch_id, name, plate, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, now(), now())
		RETURNING `+vehicleColumns,
		uuidParam(companyID), uuidParam(branchID), name, plate)
	v, err := scanVehicle(row)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("create vehicle: %w", err)
	}
	return v, nil
}
