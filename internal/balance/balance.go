// Package balance implements the company-balance gate (C10): per-tenant
// quota accounting that mission-create and vehicle-create call before
// persisting, plus the admin-facing purchase/top-up operation.
package balance

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/domain"
	"github.com/routecore/platform/internal/storage"
)

// Consume runs inside the caller's request transaction and enforces the
// quota for action. An action that doesn't match the company's current
// balance type is a no-op -- the gate only meters the metric it's
// currently configured for.
func Consume(ctx context.Context, tx pgx.Tx, companyID string, action domain.BalanceAction) error {
	repo := storage.NewBalanceRepo(tx)

	b, err := repo.EnsureExists(ctx, companyID)
	if err != nil {
		return apperr.Internalf(err, "ensure company balance")
	}

	switch {
	case action == domain.ActionMissionCreate && b.Type == domain.BalancePerMissions:
		ok, err := repo.ConsumeMission(ctx, companyID)
		if err != nil {
			return apperr.Internalf(err, "consume mission balance")
		}
		if !ok {
			return balanceExceeded(b.Type)
		}
		return nil

	case action == domain.ActionVehicleCreate && b.Type == domain.BalancePerVehiclesPerMonth:
		ok, err := repo.ConsumeVehicle(ctx, companyID)
		if err != nil {
			return apperr.Internalf(err, "consume vehicle balance")
		}
		if !ok {
			return balanceExceeded(b.Type)
		}
		return nil

	default:
		// The company isn't metered for this action under its current
		// balance type -- allow through unmetered.
		return nil
	}
}

// Purchase tops up or retypes the company's balance and always appends an
// audit row. Callers enforce the admin-only authorization before calling
// this; the gate itself doesn't check permissions.
func Purchase(ctx context.Context, tx pgx.Tx, companyID string, typ domain.BalanceType, quantity int64, createdByID string) (domain.CompanyBalance, error) {
	if _, err := storage.NewBalanceRepo(tx).EnsureExists(ctx, companyID); err != nil {
		return domain.CompanyBalance{}, apperr.Internalf(err, "ensure company balance")
	}
	b, err := storage.NewBalanceRepo(tx).Purchase(ctx, companyID, typ, quantity, createdByID)
	if err != nil {
		return domain.CompanyBalance{}, apperr.Internalf(err, "purchase company balance")
	}
	return b, nil
}

func balanceExceeded(typ domain.BalanceType) error {
	return apperr.Conflictf("BALANCE_EXCEEDED", "balance exhausted for type %q", typ).
		WithDetails(map[string]any{"balanceType": typ})
}
