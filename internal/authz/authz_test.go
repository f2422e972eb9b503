package authz_test

import (
	"context"
	"testing"

	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/authz"
	"github.com/routecore/platform/internal/domain"
	"github.com/routecore/platform/internal/reqctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRC(rc *reqctx.RequestContext) context.Context {
	return reqctx.Run(context.Background(), rc)
}

func TestRequire_NoRequestContext(t *testing.T) {
	err := authz.Require(context.Background(), []string{"mission:create"}, "", authz.NoSelfScope)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestRequire_EmptyRequiredSetAlwaysAllowed(t *testing.T) {
	ctx := withRC(&reqctx.RequestContext{ActorType: domain.ActorMobile})
	assert.NoError(t, authz.Require(ctx, nil, "", authz.NoSelfScope))
}

func TestRequire_SuperAdminBypassesEverything(t *testing.T) {
	ctx := withRC(&reqctx.RequestContext{IsSuperAdmin: true})
	assert.NoError(t, authz.Require(ctx, []string{"anything:at:all"}, "", authz.NoSelfScope))
}

func TestRequire_MobileSelfScopeBypass(t *testing.T) {
	ctx := withRC(&reqctx.RequestContext{
		ActorType:   domain.ActorMobile,
		UserID:      "user-1",
		Permissions: nil,
	})
	err := authz.Require(ctx, []string{"mission:read"}, "user-1", authz.ReadSelf)
	assert.NoError(t, err)
}

func TestRequire_MobileSelfScopeDoesNotCoverOtherUsers(t *testing.T) {
	ctx := withRC(&reqctx.RequestContext{
		ActorType:   domain.ActorMobile,
		UserID:      "user-1",
		Permissions: nil,
	})
	err := authz.Require(ctx, []string{"mission:read"}, "user-2", authz.ReadSelf)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestRequire_WebActorIgnoresSelfScope(t *testing.T) {
	ctx := withRC(&reqctx.RequestContext{
		ActorType:   domain.ActorWeb,
		UserID:      "user-1",
		Permissions: nil,
	})
	err := authz.Require(ctx, []string{"mission:read"}, "user-1", authz.ReadSelf)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestRequire_AllPermissionsMustBePresent(t *testing.T) {
	ctx := withRC(&reqctx.RequestContext{
		ActorType:   domain.ActorWeb,
		Permissions: []string{"mission:create"},
	})
	err := authz.Require(ctx, []string{"mission:create", "mission:delete"}, "", authz.NoSelfScope)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestRequire_HoldingAllPermissionsPasses(t *testing.T) {
	ctx := withRC(&reqctx.RequestContext{
		ActorType:   domain.ActorWeb,
		Permissions: []string{"mission:create", "mission:read"},
	})
	err := authz.Require(ctx, []string{"mission:create", "mission:read"}, "", authz.NoSelfScope)
	assert.NoError(t, err)
}
