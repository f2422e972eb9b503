// Package tokens implements the token extractor and verifier (C4): pulls
// a signed access token out of an incoming request, verifies it, and
// decodes the fixed claim set spec §4.4 names. No database call happens
// here -- the pipeline's refresh phase is what re-derives authoritative
// state.
package tokens

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/domain"
)

// ErrNoCredential distinguishes "nothing was presented" from "something
// was presented and it was invalid" -- the pipeline's [decide] step
// treats the former as a candidate for the anonymous no-txn path and the
// latter as an outright UNAUTHENTICATED rejection.
var ErrNoCredential = errors.New("no credential presented")

// authorizationList decodes a token's authorizations claim whether it was
// encoded as a native JSON array or as a legacy comma-joined string,
// normalizing either shape to the same trimmed, non-empty slice. Marshals
// back out as a plain array.
type authorizationList []string

func (a *authorizationList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*a = normalizeAuthorizations(arr)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = NormalizeAuthorizationString(s)
	return nil
}

// RoleClaim is the nested role shape a token may carry.
type RoleClaim struct {
	Name           string            `json:"name"`
	Authorizations authorizationList `json:"authorizations"`
}

// Claims is the fixed, exact claim set C4 decodes. Extra fields in an
// incoming token are ignored; missing optional fields simply zero-value.
type Claims struct {
	UserID       string            `json:"sub"`
	Username     string            `json:"username"`
	ActorType    domain.ActorType  `json:"actorType"`
	CompanyID    string            `json:"companyId,omitempty"`
	BranchID     string            `json:"branchId,omitempty"`
	DriverID     string            `json:"driverId,omitempty"`
	Role         *RoleClaim        `json:"role,omitempty"`
	IsSuperAdmin bool              `json:"isSuperAdmin"`
	jwt.RegisteredClaims
}

// Authorizations returns the claim's permission set, already normalized.
func (c *Claims) Authorizations() []string {
	if c.Role == nil {
		return nil
	}
	return c.Role.Authorizations
}

// Provider signs and verifies access tokens with a single HMAC secret.
type Provider struct {
	secret     []byte
	expiration time.Duration
}

func NewProvider(secret string, expiration time.Duration) *Provider {
	return &Provider{secret: []byte(secret), expiration: expiration}
}

// IssueParams is everything Issue needs to mint an access token; callers
// assemble it from the authoritative DB row, never from a prior token.
type IssueParams struct {
	UserID         string
	Username       string
	ActorType      domain.ActorType
	CompanyID      string
	BranchID       string
	DriverID       string
	RoleName       string
	Authorizations []string
	IsSuperAdmin   bool
}

func (p *Provider) Issue(params IssueParams) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(p.expiration)

	claims := Claims{
		UserID:       params.UserID,
		Username:     params.Username,
		ActorType:    params.ActorType,
		CompanyID:    params.CompanyID,
		BranchID:     params.BranchID,
		DriverID:     params.DriverID,
		IsSuperAdmin: params.IsSuperAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   params.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if params.RoleName != "" {
		claims.Role = &RoleClaim{Name: params.RoleName, Authorizations: normalizeAuthorizations(params.Authorizations)}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, apperr.Internalf(err, "sign access token")
	}
	return signed, expiresAt, nil
}

// Verify parses and validates tokenString, returning the decoded claims
// with Authorizations already normalized.
func (p *Provider) Verify(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Unauthenticatedf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Unauthenticatedf("invalid or expired token")
	}
	if claims.UserID == "" {
		return nil, apperr.Unauthenticatedf("token missing subject claim")
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, apperr.Unauthenticatedf("token subject is not a valid id")
	}
	if claims.Role != nil {
		claims.Role.Authorizations = normalizeAuthorizations(claims.Role.Authorizations)
	}
	return &claims, nil
}

// Extract pulls the raw token string from r, preferring the access_token
// cookie over the Authorization header, per spec §4.4's precedence.
func Extract(r *http.Request) (string, error) {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrNoCredential
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", apperr.Unauthenticatedf("malformed Authorization header")
	}
	token := strings.TrimPrefix(auth, prefix)
	if token == "" {
		return "", apperr.Unauthenticatedf("empty bearer token")
	}
	return token, nil
}

// normalizeAuthorizations accepts either shape a legacy claim may carry
// (comma-joined string, handled by callers that pre-split) or a native
// sequence, and returns a trimmed, non-empty, order-preserving slice.
func normalizeAuthorizations(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, a := range raw {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// NormalizeAuthorizationString splits a comma-joined authorizations
// string into the same canonical shape normalizeAuthorizations produces.
// Some legacy clients/tokens encode the set this way; see spec's note
// under Claim normalization.
func NormalizeAuthorizationString(raw string) []string {
	return normalizeAuthorizations(strings.Split(raw, ","))
}
