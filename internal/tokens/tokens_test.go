package tokens_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/domain"
	"github.com/routecore/platform/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	p := tokens.NewProvider("test-secret", time.Hour)
	userID := uuid.New().String()

	signed, expiresAt, err := p.Issue(tokens.IssueParams{
		UserID:         userID,
		Username:       "driver1",
		ActorType:      domain.ActorMobile,
		CompanyID:      uuid.New().String(),
		RoleName:       "driver",
		Authorizations: []string{"mission:read:self", " mission:update:self ", ""},
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Second)

	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, domain.ActorMobile, claims.ActorType)
	require.NotNil(t, claims.Role)
	assert.Equal(t, []string{"mission:read:self", "mission:update:self"}, claims.Authorizations())
}

// Some legacy clients/tokens encode the role's authorizations claim as a
// single comma-joined string instead of a JSON array; Verify must
// normalize either shape rather than failing to unmarshal the string one.
func TestVerifyNormalizesCommaJoinedAuthorizationsString(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New().String()
	now := time.Now()

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          userID,
		"username":     "driver1",
		"actorType":    string(domain.ActorMobile),
		"isSuperAdmin": false,
		"role": map[string]any{
			"name":           "driver",
			"authorizations": "mission:read:self, mission:update:self ,",
		},
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
	})
	signed, err := raw.SignedString([]byte(secret))
	require.NoError(t, err)

	p := tokens.NewProvider(secret, time.Hour)
	claims, err := p.Verify(signed)
	require.NoError(t, err)
	require.NotNil(t, claims.Role)
	assert.Equal(t, []string{"mission:read:self", "mission:update:self"}, claims.Authorizations())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := tokens.NewProvider("secret-a", time.Hour)
	verifier := tokens.NewProvider("secret-b", time.Hour)

	signed, _, err := issuer.Issue(tokens.IssueParams{UserID: uuid.New().String()})
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	p := tokens.NewProvider("test-secret", -time.Minute)
	signed, _, err := p.Issue(tokens.IssueParams{UserID: uuid.New().String()})
	require.NoError(t, err)

	_, err = p.Verify(signed)
	require.Error(t, err)
}

func TestVerifyRejectsNonUUIDSubject(t *testing.T) {
	p := tokens.NewProvider("test-secret", time.Hour)
	signed, _, err := p.Issue(tokens.IssueParams{UserID: "not-a-uuid"})
	require.NoError(t, err)

	_, err = p.Verify(signed)
	require.Error(t, err)
}

func TestExtractPrefersCookieOverHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "from-cookie"})
	r.Header.Set("Authorization", "Bearer from-header")

	got, err := tokens.Extract(r)
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", got)
}

func TestExtractFallsBackToBearerHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer from-header")

	got, err := tokens.Extract(r)
	require.NoError(t, err)
	assert.Equal(t, "from-header", got)
}

func TestExtractNoCredentialIsAnonymousPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := tokens.Extract(r)
	assert.ErrorIs(t, err, tokens.ErrNoCredential)
}

func TestExtractMalformedHeaderIsHardFailure(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic from-header")

	_, err := tokens.Extract(r)
	require.Error(t, err)
	assert.NotErrorIs(t, err, tokens.ErrNoCredential)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}
