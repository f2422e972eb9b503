// Package authz is the authorization guard (C6): given a handler's
// declared required-permission set and the current request context,
// decide allow or deny.
package authz

import (
	"context"

	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/domain"
	"github.com/routecore/platform/internal/reqctx"
)

// SelfScope names the two mobile "operates on my own record" exemptions
// spec §4.6 carves out of the ordinary permission check.
type SelfScope string

const (
	NoSelfScope SelfScope = ""
	ReadSelf    SelfScope = "read-self"
	UpdateSelf  SelfScope = "update-self"
)

// Require enforces the declared permission set against ctx. targetUserID
// and scope are only consulted for the mobile self-scope exemption; pass
// "" / NoSelfScope when a handler has no such exemption.
func Require(ctx context.Context, required []string, targetUserID string, scope SelfScope) error {
	if len(required) == 0 {
		return nil
	}

	rc, ok := reqctx.Get(ctx)
	if !ok {
		return apperr.Unauthenticatedf("no request context installed")
	}
	if rc.IsSuperAdmin {
		return nil
	}

	if rc.ActorType == domain.ActorMobile && scope != NoSelfScope && targetUserID == rc.UserID {
		return nil
	}

	have := make(map[string]bool, len(rc.Permissions))
	for _, p := range rc.Permissions {
		have[p] = true
	}
	for _, p := range required {
		if !have[p] {
			return apperr.Forbiddenf("missing required permission %q", p)
		}
	}
	return nil
}
