// Package login implements credential login (C8): verify username and
// password against the web-user or mobile-user store and emit an access
// token plus a new refresh token. Web and mobile users are variants of
// one Actor, not subtypes -- dispatch happens on domain.ActorType.
package login

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/domain"
	"github.com/routecore/platform/internal/refresh"
	"github.com/routecore/platform/internal/security"
	"github.com/routecore/platform/internal/storage"
	"github.com/routecore/platform/internal/tokens"
)

type Result struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	ActorType    domain.ActorType
	UserID       string
}

type Service struct {
	pool     *pgxpool.Pool
	hasher   security.Hasher
	tokens   *tokens.Provider
	refresh  *refresh.Service
}

func NewService(pool *pgxpool.Pool, hasher security.Hasher, tokenProvider *tokens.Provider, refreshService *refresh.Service) *Service {
	return &Service{pool: pool, hasher: hasher, tokens: tokenProvider, refresh: refreshService}
}

// LoginWeb authenticates a web user. Username lookup is intentionally
// global (unscoped by companyId) -- the caller's tenant isn't known until
// the row is found; see spec open question (c) on the uniqueness
// asymmetry this relies on.
func (s *Service) LoginWeb(ctx context.Context, username, password string) (Result, error) {
	username = normalizeUsername(username)

	var result Result
	err := storage.WithSystemTx(ctx, s.pool, func(tx pgx.Tx) error {
		u, err := storage.NewWebUserRepo(tx).GetByUsername(ctx, username)
		if err != nil {
			return apperr.Unauthenticatedf("invalid username or password")
		}
		if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
			return apperr.Unauthenticatedf("invalid username or password")
		}

		roleName, perms, err := s.loadRole(ctx, tx, u.RoleID)
		if err != nil {
			return err
		}

		r, err := s.issue(ctx, tx, u.ID, "", domain.ActorWeb, u.Username, u.CompanyID, u.BranchID, "", roleName, perms, u.IsSuperAdmin)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// LoginMobile authenticates a mobile user. If companyID is empty and more
// than one account shares the username, the caller must resubmit with an
// explicit companyId.
func (s *Service) LoginMobile(ctx context.Context, username, password, companyID string) (Result, error) {
	username = normalizeUsername(username)

	var result Result
	err := storage.WithSystemTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := storage.NewMobileUserRepo(tx)

		var u domain.MobileUser
		if companyID != "" {
			found, err := repo.GetByCompanyAndUsername(ctx, companyID, username)
			if err != nil {
				return apperr.Unauthenticatedf("invalid username or password")
			}
			u = found
		} else {
			candidates, err := repo.ListByUsername(ctx, username)
			if err != nil {
				return apperr.Internalf(err, "lookup mobile user")
			}
			if len(candidates) == 0 {
				return apperr.Unauthenticatedf("invalid username or password")
			}
			if len(candidates) > 1 {
				return apperr.BadRequestf("companyId required: multiple accounts share this username")
			}
			u = candidates[0]
		}

		if u.IsBlocked {
			return apperr.Unauthenticatedf("account is blocked")
		}
		if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
			return apperr.Unauthenticatedf("invalid username or password")
		}

		roleName, _, err := s.loadRole(ctx, tx, u.RoleID)
		if err != nil {
			return err
		}

		r, err := s.issue(ctx, tx, u.ID, u.ID, domain.ActorMobile, u.Username, u.CompanyID, u.BranchID, u.DriverID, roleName, u.Permissions, u.IsSuperAdmin)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// ReissueAccessToken mints a fresh access token for an already-rotated
// refresh token. It re-reads the actor by id (not username) so the claims
// reflect current DB state rather than whatever was true at original
// login -- the same "never trust a prior token" posture C5's refresh
// phase applies to the access token's own claims.
func (s *Service) ReissueAccessToken(ctx context.Context, userID, mobileUserID string) (string, time.Time, error) {
	var access string
	var expiresAt time.Time
	err := storage.WithSystemTx(ctx, s.pool, func(tx pgx.Tx) error {
		if mobileUserID != "" {
			u, err := storage.NewMobileUserRepo(tx).GetByID(ctx, mobileUserID)
			if err != nil {
				return apperr.Unauthenticatedf("actor not found")
			}
			if u.IsBlocked {
				return apperr.Unauthenticatedf("account is blocked")
			}
			roleName, _, err := s.loadRole(ctx, tx, u.RoleID)
			if err != nil {
				return err
			}
			a, exp, err := s.tokens.Issue(tokens.IssueParams{
				UserID: u.ID, Username: u.Username, ActorType: domain.ActorMobile,
				CompanyID: u.CompanyID, BranchID: u.BranchID, DriverID: u.DriverID,
				RoleName: roleName, Authorizations: u.Permissions, IsSuperAdmin: u.IsSuperAdmin,
			})
			if err != nil {
				return err
			}
			access, expiresAt = a, exp
			return nil
		}

		u, err := storage.NewWebUserRepo(tx).GetByID(ctx, userID)
		if err != nil {
			return apperr.Unauthenticatedf("actor not found")
		}
		roleName, perms, err := s.loadRole(ctx, tx, u.RoleID)
		if err != nil {
			return err
		}
		a, exp, err := s.tokens.Issue(tokens.IssueParams{
			UserID: u.ID, Username: u.Username, ActorType: domain.ActorWeb,
			CompanyID: u.CompanyID, BranchID: u.BranchID,
			RoleName: roleName, Authorizations: perms, IsSuperAdmin: u.IsSuperAdmin,
		})
		if err != nil {
			return err
		}
		access, expiresAt = a, exp
		return nil
	})
	return access, expiresAt, err
}

func (s *Service) loadRole(ctx context.Context, tx pgx.Tx, roleID string) (string, []string, error) {
	if roleID == "" {
		return "", nil, nil
	}
	role, err := storage.NewRoleRepo(tx).GetByID(ctx, roleID)
	if err != nil {
		return "", nil, apperr.Internalf(err, "load role")
	}
	return role.Name, role.Authorizations, nil
}

func (s *Service) issue(ctx context.Context, tx pgx.Tx, userID, mobileUserID string, actorType domain.ActorType, username, companyID, branchID, driverID, roleName string, perms []string, isSuperAdmin bool) (Result, error) {
	access, expiresAt, err := s.tokens.Issue(tokens.IssueParams{
		UserID: userID, Username: username, ActorType: actorType,
		CompanyID: companyID, BranchID: branchID, DriverID: driverID,
		RoleName: roleName, Authorizations: perms, IsSuperAdmin: isSuperAdmin,
	})
	if err != nil {
		return Result{}, err
	}

	webUserID := userID
	if mobileUserID != "" {
		webUserID = "" // a refresh token belongs to exactly one actor
	}
	rt, err := s.refresh.Issue(ctx, tx, webUserID, mobileUserID, "")
	if err != nil {
		return Result{}, err
	}

	return Result{
		AccessToken:  access,
		RefreshToken: rt.Raw,
		ExpiresAt:    expiresAt,
		ActorType:    actorType,
		UserID:       userID,
	}, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
