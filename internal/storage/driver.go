package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/routecore/platform/internal/domain"
)

type DriverRepo struct{ db DBTX }

func NewDriverRepo(db DBTX) *DriverRepo { return &DriverRepo{db: db} }

const driverColumns = `id, company_id, branch_id, name, phone, created_at, updated_at`

func scanDriver(row pgx.Row) (domain.Driver, error) {
	var (
		d                     domain.Driver
		id, companyID, branch pgtype.UUID
		phone                 pgtype.Text
	)
	err := row.Scan(&id, &companyID, &branch, &d.Name, &phone, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return domain.Driver{}, err
	}
	d.ID = uuidStr(id)
	d.CompanyID = uuidStr(companyID)
	d.BranchID = uuidStr(branch)
	d.Phone = phone.String
	return d, nil
}

func (r *DriverRepo) GetByID(ctx context.Context, id string) (domain.Driver, error) {
	row := r.db.QueryRow(ctx, `SELECT `+driverColumns+`
		FROM drivers WHERE id = $1 AND deleted_at IS NULL`, uuidParam(id))
	d, err := scanDriver(row)
	if err != nil {
		return domain.Driver{}, fmt.Errorf("get driver: %w", err)
	}
	return d, nil
}
