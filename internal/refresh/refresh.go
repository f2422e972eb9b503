// Package refresh implements the refresh-token service (C7): opaque
// tokens with server-side bcrypt hash storage, family-grouped rotation,
// and reuse detection that revokes a whole family.
package refresh

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/security"
	"github.com/routecore/platform/internal/storage"
)

// Token is the opaque value handed to clients: "<id>.<secret>". Only
// bcrypt(secret) is ever persisted.
type Token struct {
	Raw       string
	FamilyID  string
	ExpiresAt time.Time
}

type Service struct {
	hasher   security.Hasher
	validFor time.Duration
}

func NewService(hasher security.Hasher, validFor time.Duration) *Service {
	return &Service{hasher: hasher, validFor: validFor}
}

// Issue creates a new row and returns the opaque client-facing token.
// Exactly one of userID/mobileUserID should be set. Pass familyID=="" to
// start a new lineage.
func (s *Service) Issue(ctx context.Context, tx pgx.Tx, userID, mobileUserID, familyID string) (Token, error) {
	secret, err := randomHex(16) // 128 bits == 32 hex chars
	if err != nil {
		return Token{}, apperr.Internalf(err, "generate refresh secret")
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return Token{}, apperr.Internalf(err, "hash refresh secret")
	}

	expiresAt := time.Now().Add(s.validFor)
	row, err := storage.NewRefreshTokenRepo(tx).Issue(ctx, userID, mobileUserID, hash, familyID, expiresAt)
	if err != nil {
		return Token{}, apperr.Internalf(err, "store refresh token")
	}

	return Token{
		Raw:       row.ID + "." + secret,
		FamilyID:  row.FamilyID,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// RotateResult carries what the caller needs to mint a fresh access
// token after a successful rotation.
type RotateResult struct {
	NewToken     Token
	UserID       string
	MobileUserID string
}

// Rotate implements spec §4.7's rotate operation, including reuse
// detection: presenting an already-revoked token revokes the entire
// family before failing, so a stolen-and-replayed token kills every live
// descendant in its lineage.
func (s *Service) Rotate(ctx context.Context, tx pgx.Tx, rawToken string) (RotateResult, error) {
	id, secret, err := parse(rawToken)
	if err != nil {
		return RotateResult{}, apperr.Unauthenticatedf("malformed refresh token")
	}

	repo := storage.NewRefreshTokenRepo(tx)
	row, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return RotateResult{}, apperr.Unauthenticatedf("refresh token not found")
		}
		return RotateResult{}, apperr.Internalf(err, "load refresh token")
	}

	if row.IsRevoked {
		if revokeErr := repo.RevokeFamily(ctx, row.FamilyID); revokeErr != nil {
			return RotateResult{}, apperr.Internalf(revokeErr, "revoke family after reuse detection")
		}
		return RotateResult{}, apperr.WithReason(apperr.Unauthenticated, "reuse-detected", "refresh token reuse detected")
	}

	if err := s.hasher.Compare(row.TokenHash, secret); err != nil {
		return RotateResult{}, apperr.Unauthenticatedf("refresh token secret mismatch")
	}

	if time.Now().After(row.ExpiresAt) {
		return RotateResult{}, apperr.Unauthenticatedf("refresh token expired")
	}

	if err := repo.Revoke(ctx, row.ID); err != nil {
		return RotateResult{}, apperr.Internalf(err, "revoke rotated token")
	}

	newToken, err := s.Issue(ctx, tx, row.UserID, row.MobileUserID, row.FamilyID)
	if err != nil {
		return RotateResult{}, err
	}

	return RotateResult{NewToken: newToken, UserID: row.UserID, MobileUserID: row.MobileUserID}, nil
}

// Revoke is a best-effort, idempotent single-token revoke (logout).
func (s *Service) Revoke(ctx context.Context, tx pgx.Tx, rawToken string) error {
	id, _, err := parse(rawToken)
	if err != nil {
		return nil // malformed token: nothing to revoke, logout still succeeds
	}
	return storage.NewRefreshTokenRepo(tx).Revoke(ctx, id)
}

// RevokeFamily marks every token sharing familyID as revoked.
func (s *Service) RevokeFamily(ctx context.Context, tx pgx.Tx, familyID string) error {
	return storage.NewRefreshTokenRepo(tx).RevokeFamily(ctx, familyID)
}

func parse(raw string) (id, secret string, err error) {
	parts := strings.SplitN(raw, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("refresh token must be \"<id>.<secret>\"")
	}
	return parts[0], parts[1], nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
