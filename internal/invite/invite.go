// Package invite implements invite-code registration (C9): a mobile user
// establishes their own account by presenting a single-use code instead of
// an authenticated actor creating them.
package invite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/domain"
	"github.com/routecore/platform/internal/security"
	"github.com/routecore/platform/internal/storage"
)

type Service struct {
	pool   *pgxpool.Pool
	hasher security.Hasher
}

func NewService(pool *pgxpool.Pool, hasher security.Hasher) *Service {
	return &Service{pool: pool, hasher: hasher}
}

// Register runs C9's full protocol in one transaction. There is no
// authenticated actor yet, so it runs via storage.WithSystemTx rather than
// switching to the restricted role -- the invite row itself is the only
// authorization this operation has. The invite notification (D3) already
// went out when the invite was created, not here.
func (s *Service) Register(ctx context.Context, code, username, password string) (domain.MobileUser, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	var created domain.MobileUser
	err := storage.WithSystemTx(ctx, s.pool, func(tx pgx.Tx) error {
		invites := storage.NewInviteRepo(tx)

		inv, err := invites.GetUnusedByCode(ctx, code)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.BadRequestf("invite code is invalid or already used")
			}
			return apperr.Internalf(err, "load invite")
		}
		// Belt-and-suspenders: GetUnusedByCode already matched on an
		// indexed exact equality in SQL, but re-check in application code
		// with a constant-time comparison before trusting the row, so a
		// future loosening of that query (case-folding, a LIKE prefix
		// scan) can't turn this into a timing oracle over the code space.
		if !security.ConstantTimeEqual(inv.Code, code) {
			return apperr.BadRequestf("invite code is invalid or already used")
		}

		if inv.ExpiresAt != nil && time.Now().After(*inv.ExpiresAt) {
			return apperr.BadRequestf("invite code has expired")
		}

		if domain.IsReservedUsername(username) {
			return apperr.Conflictf("RESERVED_USERNAME", "username %q is reserved", username)
		}

		exists, err := storage.NewMobileUserRepo(tx).ExistsLive(ctx, inv.CompanyID, username)
		if err != nil {
			return apperr.Internalf(err, "check username availability")
		}
		if exists {
			return apperr.BadRequestf("username is already taken")
		}

		hash, err := s.hasher.Hash(password)
		if err != nil {
			return apperr.Internalf(err, "hash password")
		}

		u, err := storage.NewMobileUserRepo(tx).Create(ctx, domain.MobileUser{
			Username:     username,
			PasswordHash: hash,
			CompanyID:    inv.CompanyID,
			BranchID:     inv.BranchID,
			RoleID:       inv.RoleID,
			DriverID:     inv.DriverID,
			Permissions:  domain.DefaultMobilePermissions,
			IsBlocked:    false,
		})
		if err != nil {
			return apperr.Internalf(err, "create mobile user")
		}

		if err := invites.MarkUsed(ctx, inv.ID, u.ID); err != nil {
			return apperr.Internalf(err, "mark invite used")
		}

		created = u
		return nil
	})
	if err != nil {
		return domain.MobileUser{}, err
	}

	return created, nil
}
