// Package reqctx is the request context store (C3): the ambient values
// bound to one request's logical flow, propagated with context.Context
// rather than any thread-local mechanism so it survives suspension at
// database and outbound-HTTP await points.
package reqctx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/domain"
)

// contextKey is a private type so no other package can collide with our
// key by accident.
type contextKey string

const requestContextKey contextKey = "reqctx.RequestContext"

// RequestContext is the per-request ambient value described in spec §4.3.
type RequestContext struct {
	CompanyID    string // present iff !IsSuperAdmin
	BranchID     string // actor's branch, read from the DB, never trusted from a token
	UserID       string
	ActorType    domain.ActorType
	IsSuperAdmin bool
	RoleName     string
	Permissions  []string

	// Tx is the transaction-bound DB handle for this request. Nil outside
	// the [txn] branch of C5's state machine (the no-txn path for
	// anonymous requests).
	Tx pgx.Tx
}

// Snapshot is RequestContext without the DB handle -- the serializable
// shape C11 puts in a queue message envelope.
type Snapshot struct {
	CompanyID    string           `json:"companyId,omitempty"`
	BranchID     string           `json:"branchId,omitempty"`
	UserID       string           `json:"userId"`
	ActorType    domain.ActorType `json:"actorType"`
	IsSuperAdmin bool             `json:"isSuperAdmin"`
	RoleName     string           `json:"roleName,omitempty"`
	Permissions  []string         `json:"permissions,omitempty"`
}

// Run installs rc into ctx and returns the derived context. Because
// context.Context is immutable and propagates through every await point
// by construction, this single call is the entire "run across
// asynchronous suspension" contract -- there is no separate thread-local
// to restore afterwards.
func Run(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// Get returns the innermost installed RequestContext, or (nil, false) if
// none is installed (the anonymous/no-txn path).
func Get(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(*RequestContext)
	return rc, ok
}

// MustGet panics if no RequestContext is installed. Use only where C5 is
// guaranteed to have run first.
func MustGet(ctx context.Context) *RequestContext {
	rc, ok := Get(ctx)
	if !ok {
		panic("reqctx: no RequestContext installed")
	}
	return rc
}

// GetTx returns the request's bound transaction, or nil if this request
// never entered the [txn] branch.
func GetTx(ctx context.Context) pgx.Tx {
	rc, ok := Get(ctx)
	if !ok {
		return nil
	}
	return rc.Tx
}

// TakeSnapshot returns rc without the DB handle.
func (rc *RequestContext) TakeSnapshot() Snapshot {
	return Snapshot{
		CompanyID:    rc.CompanyID,
		BranchID:     rc.BranchID,
		UserID:       rc.UserID,
		ActorType:    rc.ActorType,
		IsSuperAdmin: rc.IsSuperAdmin,
		RoleName:     rc.RoleName,
		Permissions:  rc.Permissions,
	}
}

// RequireCompanyID returns rc.CompanyID or UNAUTHENTICATED if the
// installed context has none (a superadmin acting with no tenant scope
// selected).
func RequireCompanyID(ctx context.Context) (string, error) {
	rc, ok := Get(ctx)
	if !ok || rc.CompanyID == "" {
		return "", apperr.Unauthenticatedf("no tenant scope in request context")
	}
	return rc.CompanyID, nil
}

// GetEffectiveBranchID implements the application-level branch-narrowing
// rule on top of RLS's company-level isolation: a superadmin or
// companyAdmin may query any branch in scope; anyone else is pinned to
// their own branch regardless of what the query asked for.
func GetEffectiveBranchID(ctx context.Context, queryBranchID string) string {
	rc, ok := Get(ctx)
	if !ok {
		return queryBranchID
	}
	if rc.IsSuperAdmin || rc.RoleName == domain.ReservedAdminRoleName {
		return queryBranchID
	}
	return rc.BranchID
}

// HasPermission reports whether perm appears in rc.Permissions or the
// actor is a superadmin.
func HasPermission(ctx context.Context, perm string) bool {
	rc, ok := Get(ctx)
	if !ok {
		return false
	}
	if rc.IsSuperAdmin {
		return true
	}
	for _, p := range rc.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// EnsureTx returns an error if called without an installed transaction -- every
// repository call in the authenticated path must go through a bound
// handle, never a raw pool.
func EnsureTx(ctx context.Context) (pgx.Tx, error) {
	tx := GetTx(ctx)
	if tx == nil {
		return nil, fmt.Errorf("reqctx: no transaction bound to request context")
	}
	return tx, nil
}
