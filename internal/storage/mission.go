package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/routecore/platform/internal/domain"
)

type MissionRepo struct{ db DBTX }

func NewMissionRepo(db DBTX) *MissionRepo { return &MissionRepo{db: db} }

const missionColumns = `id, company_id, branch_id, driver_id, vehicle_id, address,
	scheduled_date, status, created_at, updated_at`

func scanMission(row pgx.Row) (domain.Mission, error) {
	var (
		m                                domain.Mission
		id, companyID, branchID          pgtype.UUID
		driverID, vehicleID              pgtype.UUID
		status                           string
	)
	err := row.Scan(&id, &companyID, &branchID, &driverID, &vehicleID, &m.Address,
		&m.ScheduledDate, &status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Mission{}, err
	}
	m.ID = uuidStr(id)
	m.CompanyID = uuidStr(companyID)
	m.BranchID = uuidStr(branchID)
	m.DriverID = uuidStr(driverID)
	m.VehicleID = uuidStr(vehicleID)
	m.Status = domain.MissionStatus(status)
	return m, nil
}

// ListByDate illustrates tenant isolation scenario S1/S2: RLS narrows the
// result to the caller's company (or all companies for a superadmin)
// without this query ever naming companyId itself.
func (r *MissionRepo) ListByDate(ctx context.Context, date time.Time) ([]domain.Mission, error) {
	rows, err := r.db.Query(ctx, `SELECT `+missionColumns+`
		FROM missions WHERE scheduled_date::date = $1::date AND deleted_at IS NULL
		ORDER BY created_at`, date)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	var out []domain.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MissionRepo) Create(ctx context.Context, m domain.Mission) (domain.Mission, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO missions (id, company_id, branch_id, driver_id, vehicle_id, address,
			scheduled_date, status, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,'')::uuid, NULLIF($4,'')::uuid, $5, $6, $7, now(), now())
		RETURNING `+missionColumns,
		uuidParam(m.CompanyID), uuidParam(m.BranchID), m.DriverID, m.VehicleID,
		m.Address, m.ScheduledDate, string(domain.MissionPending))
	created, err := scanMission(row)
	if err != nil {
		return domain.Mission{}, fmt.Errorf("create mission: %w", err)
	}
	return created, nil
}
