package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/routecore/platform/internal/domain"
)

type BalanceRepo struct{ db DBTX }

func NewBalanceRepo(db DBTX) *BalanceRepo { return &BalanceRepo{db: db} }

const balanceColumns = `company_id, type, total, remaining, monthly_limit, period_start, created_at, updated_at`

func scanBalance(row pgx.Row) (domain.CompanyBalance, error) {
	var (
		b         domain.CompanyBalance
		companyID pgtype.UUID
		typ       string
	)
	err := row.Scan(&companyID, &typ, &b.Total, &b.Remaining, &b.MonthlyLimit, &b.PeriodStart, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CompanyBalance{}, ErrNotFound
		}
		return domain.CompanyBalance{}, err
	}
	b.CompanyID = uuidStr(companyID)
	b.Type = domain.BalanceType(typ)
	return b, nil
}

func (r *BalanceRepo) Get(ctx context.Context, companyID string) (domain.CompanyBalance, error) {
	row := r.db.QueryRow(ctx, `SELECT `+balanceColumns+` FROM company_balances WHERE company_id = $1`, uuidParam(companyID))
	b, err := scanBalance(row)
	if err != nil {
		return domain.CompanyBalance{}, fmt.Errorf("get company balance: %w", err)
	}
	return b, nil
}

// EnsureExists lazily creates the row with type=per_missions and every
// numeric field null, the default balance shape C10 requires before any
// consume/purchase.
func (r *BalanceRepo) EnsureExists(ctx context.Context, companyID string) (domain.CompanyBalance, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO company_balances (company_id, type, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (company_id) DO UPDATE SET company_id = company_balances.company_id
		RETURNING `+balanceColumns,
		uuidParam(companyID), string(domain.BalancePerMissions))
	b, err := scanBalance(row)
	if err != nil {
		return domain.CompanyBalance{}, fmt.Errorf("ensure company balance: %w", err)
	}
	return b, nil
}

// ConsumeMission applies the per_missions decrement atomically. Zero rows
// affected means the quota is exhausted.
func (r *BalanceRepo) ConsumeMission(ctx context.Context, companyID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE company_balances
		SET remaining = CASE WHEN remaining IS NULL THEN NULL ELSE remaining - 1 END,
		    updated_at = now()
		WHERE company_id = $1 AND type = $2
		  AND (remaining IS NULL OR remaining > 0)`,
		uuidParam(companyID), string(domain.BalancePerMissions))
	if err != nil {
		return false, fmt.Errorf("consume mission balance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ConsumeVehicle applies the per_vehicles_per_month decrement, rolling
// periodStart/remaining forward to the current month in the same atomic
// statement when the stored period has lapsed.
func (r *BalanceRepo) ConsumeVehicle(ctx context.Context, companyID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE company_balances
		SET remaining = CASE
		      WHEN period_start IS NULL OR period_start < date_trunc('month', now())
		        THEN monthly_limit - 1
		      ELSE remaining - 1
		    END,
		    period_start = CASE
		      WHEN period_start IS NULL OR period_start < date_trunc('month', now())
		        THEN date_trunc('month', now())
		      ELSE period_start
		    END,
		    updated_at = now()
		WHERE company_id = $1 AND type = $2
		  AND (
		    (period_start IS NULL OR period_start < date_trunc('month', now()))
		      AND monthly_limit > 0
		    OR remaining > 0
		  )`,
		uuidParam(companyID), string(domain.BalancePerVehiclesPerMonth))
	if err != nil {
		return false, fmt.Errorf("consume vehicle balance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Purchase applies a top-up/switch and appends the audit row, both in the
// same db handle the caller is already transacting on.
func (r *BalanceRepo) Purchase(ctx context.Context, companyID string, typ domain.BalanceType, quantity int64, createdByID string) (domain.CompanyBalance, error) {
	var row pgx.Row
	switch typ {
	case domain.BalancePerMissions:
		row = r.db.QueryRow(ctx, `
			UPDATE company_balances
			SET type = $2,
			    total = COALESCE(total, 0) + $3,
			    remaining = COALESCE(remaining, 0) + $3,
			    updated_at = now()
			WHERE company_id = $1
			RETURNING `+balanceColumns,
			uuidParam(companyID), string(domain.BalancePerMissions), quantity)
	case domain.BalancePerVehiclesPerMonth:
		row = r.db.QueryRow(ctx, `
			UPDATE company_balances
			SET type = $2,
			    monthly_limit = $3,
			    total = $3,
			    remaining = $3,
			    period_start = date_trunc('month', now()),
			    updated_at = now()
			WHERE company_id = $1
			RETURNING `+balanceColumns,
			uuidParam(companyID), string(domain.BalancePerVehiclesPerMonth), quantity)
	default:
		return domain.CompanyBalance{}, fmt.Errorf("purchase: unknown balance type %q", typ)
	}

	b, err := scanBalance(row)
	if err != nil {
		return domain.CompanyBalance{}, fmt.Errorf("purchase balance: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO company_balance_purchases
			(id, company_id, type, quantity, created_by_id,
			 total_after, remaining_after, monthly_limit_after, period_start_after, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4,'')::uuid, $5, $6, $7, $8, now())`,
		uuidParam(companyID), string(b.Type), quantity, createdByID,
		b.Total, b.Remaining, b.MonthlyLimit, b.PeriodStart)
	if err != nil {
		return domain.CompanyBalance{}, fmt.Errorf("record balance purchase: %w", err)
	}

	return b, nil
}
