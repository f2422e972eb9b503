package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/routecore/platform/internal/domain"
)

// CompanyRepo reads/writes the company and branch tables. Branch creation
// at company-registration time (the "main" branch) lives here because
// it's the one place outside the core that the core still needs to
// reason about -- see domain.ReservedBranchName.
type CompanyRepo struct{ db DBTX }

func NewCompanyRepo(db DBTX) *CompanyRepo { return &CompanyRepo{db: db} }

func (r *CompanyRepo) GetByID(ctx context.Context, id string) (domain.Company, error) {
	var (
		c    domain.Company
		cid  pgtype.UUID
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM companies WHERE id = $1`, uuidParam(id)).
		Scan(&cid, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Company{}, fmt.Errorf("get company: %w", err)
	}
	c.ID = uuidStr(cid)
	return c, nil
}

// CreateWithMainBranch inserts a company, its reserved "main" branch, and
// a companyAdmin role with every known permission, in that order, on the
// same db handle. Callers are expected to already be inside a
// transaction (company registration runs outside the restricted-role
// substrate, as an external collaborator per spec scope -- nothing in
// this repository calls this method; neither cmd/seed nor the tests use
// it).
func (r *CompanyRepo) CreateWithMainBranch(ctx context.Context, name string, allPermissions []string) (domain.Company, domain.Branch, domain.Role, error) {
	var (
		c       domain.Company
		b       domain.Branch
		role    domain.Role
		cid, bid, rid pgtype.UUID
	)

	err := r.db.QueryRow(ctx, `
		INSERT INTO companies (id, name, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, now(), now())
		RETURNING id, name, created_at, updated_at`, name).
		Scan(&cid, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Company{}, domain.Branch{}, domain.Role{}, fmt.Errorf("create company: %w", err)
	}
	c.ID = uuidStr(cid)

	var branchCompanyID pgtype.UUID
	err = r.db.QueryRow(ctx, `
		INSERT INTO branches (id, name, company_id, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, now(), now())
		RETURNING id, name, company_id, created_at, updated_at`,
		domain.ReservedBranchName, cid).
		Scan(&bid, &b.Name, &branchCompanyID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return domain.Company{}, domain.Branch{}, domain.Role{}, fmt.Errorf("create main branch: %w", err)
	}
	b.ID = uuidStr(bid)
	b.CompanyID = uuidStr(branchCompanyID)

	err = r.db.QueryRow(ctx, `
		INSERT INTO roles (id, name, description, authorizations, company_id, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, 'company administrator', $2, $3, now(), now())
		RETURNING id, name, description, authorizations, created_at, updated_at`,
		domain.ReservedAdminRoleName, allPermissions, cid).
		Scan(&rid, &role.Name, &role.Description, &role.Authorizations, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return domain.Company{}, domain.Branch{}, domain.Role{}, fmt.Errorf("create admin role: %w", err)
	}
	role.ID = uuidStr(rid)
	role.CompanyID = c.ID

	return c, b, role, nil
}
