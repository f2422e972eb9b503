// Package pipeline implements the request context pipeline (C5): the
// single entry point every request passes through. It verifies the
// incoming token, opens a transaction under the restricted role, refreshes
// the actor from the authoritative store, binds the RLS session
// variables, installs the request context, runs the handler, and commits
// or rolls back based on the outcome.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/domain"
	"github.com/routecore/platform/internal/reqctx"
	"github.com/routecore/platform/internal/storage"
	"github.com/routecore/platform/internal/tokens"
)

// ActorLookup resolves the authoritative row for a claimed actor. Exactly
// one of the two methods is invoked, chosen by the claim's actorType.
type ActorLookup interface {
	GetWebUser(ctx context.Context, tx pgx.Tx, id string) (effectiveCompanyID string, effectiveBranchID string, isSuperAdmin bool, roleName string, permissions []string, err error)
	GetMobileUser(ctx context.Context, tx pgx.Tx, id string) (effectiveCompanyID string, effectiveBranchID string, isSuperAdmin bool, roleName string, permissions []string, err error)
}

// Deps wires the pipeline to its collaborators.
type Deps struct {
	Pool      *pgxpool.Pool
	Tokens    *tokens.Provider
	Actors    ActorLookup
}

// Middleware returns the chi/http-standard middleware implementing C5.
// It is mounted once, ahead of every route that might need a request
// context -- public routes simply see no-txn ctx with no actor.
func Middleware(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			arrive(deps, next, w, r)
		})
	}
}

// arrive implements the [arrive]/[decide]/[no-txn]/[txn] state machine.
// The transaction is opened and torn down in this single function, the
// same shape as the teacher's WithTenantContext: the rollback-unless-
// committed defer sits immediately after Begin, so a handler panic
// unwinding through next.ServeHTTP still releases the transaction and its
// pooled connection (Rollback is safe to call even after Commit) before
// propagating to the outer panic-recovery middleware.
func arrive(deps Deps, next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tokenStr, err := tokens.Extract(r)
	if errors.Is(err, tokens.ErrNoCredential) {
		// anonymous: handlers behind C6 with an empty required-permission
		// set still run; anything needing an actor fails downstream via
		// reqctx.RequireCompanyID / authz.Require.
		next.ServeHTTP(w, r)
		return
	}
	if err != nil {
		apperr.WriteError(w, err)
		return
	}

	claims, err := deps.Tokens.Verify(tokenStr)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}

	if !claims.IsSuperAdmin && claims.CompanyID == "" {
		// "mixed" state the interceptor refuses to proceed in.
		apperr.WriteError(w, apperr.Unauthenticatedf("token carries neither superadmin nor a tenant scope"))
		return
	}

	tx, err := deps.Pool.Begin(ctx)
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "acquire connection"))
		return
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("pipeline rollback failed", "error", rbErr)
			}
		}
	}()

	installed, err := bind(ctx, deps, tx, claims.UserID, claims.ActorType)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	next.ServeHTTP(sw, r.WithContext(installed))

	if sw.status >= 400 {
		return // deferred rollback fires
	}
	if cErr := tx.Commit(ctx); cErr != nil {
		slog.Error("pipeline commit failed", "error", cErr)
		return
	}
	committed = true
}

// bind switches role, refreshes the actor, and sets the session variables
// on an already-open transaction, and installs the resulting RequestContext.
// Used by the HTTP pipeline above; C11's queue consumer runs only the
// role switch and bind steps itself in pipeline.BindFromSnapshot, with no
// refresh phase, since it trusts the envelope instead of re-reading the
// actor.
func bind(ctx context.Context, deps Deps, tx pgx.Tx, actorID string, actorType domain.ActorType) (context.Context, error) {
	if err := storage.SwitchToRestrictedRole(ctx, tx); err != nil {
		return ctx, apperr.Internalf(err, "switch to restricted role")
	}

	// Refresh phase: grant full visibility only long enough to read the
	// one authoritative row, trusting nothing from the token beyond which
	// row to read.
	if err := storage.SetSessionVars(ctx, tx, true, ""); err != nil {
		return ctx, apperr.Internalf(err, "enter refresh phase")
	}

	var (
		companyID, branchID, roleName string
		isSuperAdmin                  bool
		permissions                   []string
		err                           error
	)
	switch actorType {
	case domain.ActorMobile:
		companyID, branchID, isSuperAdmin, roleName, permissions, err = deps.Actors.GetMobileUser(ctx, tx, actorID)
	default:
		companyID, branchID, isSuperAdmin, roleName, permissions, err = deps.Actors.GetWebUser(ctx, tx, actorID)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ctx, apperr.Unauthenticatedf("actor not found or deleted")
		}
		return ctx, apperr.Internalf(err, "refresh actor")
	}

	// Bind phase: adopt the DB's row as ground truth, not the claim.
	if isSuperAdmin {
		companyID = "" // a superadmin carries no tenant scope
		if err := storage.SetSessionVars(ctx, tx, true, ""); err != nil {
			return ctx, apperr.Internalf(err, "bind superadmin session vars")
		}
	} else {
		if companyID == "" {
			return ctx, apperr.Unauthenticatedf("actor has no company")
		}
		if err := storage.SetSessionVars(ctx, tx, false, companyID); err != nil {
			return ctx, apperr.Internalf(err, "bind tenant session vars")
		}
	}

	rc := &reqctx.RequestContext{
		CompanyID:    companyID,
		BranchID:     branchID,
		UserID:       actorID,
		ActorType:    actorType,
		IsSuperAdmin: isSuperAdmin,
		RoleName:     roleName,
		Permissions:  permissions,
		Tx:           tx,
	}
	return reqctx.Run(ctx, rc), nil
}

// statusWriter captures the status code a handler wrote so the
// middleware can decide commit vs rollback after ServeHTTP returns.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
