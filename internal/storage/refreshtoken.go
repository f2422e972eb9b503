package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/routecore/platform/internal/domain"
)

type RefreshTokenRepo struct{ db DBTX }

func NewRefreshTokenRepo(db DBTX) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

func scanRefreshToken(row pgx.Row) (domain.RefreshToken, error) {
	var (
		t                        domain.RefreshToken
		id, userID, mobileUserID pgtype.UUID
		familyID                 pgtype.UUID
	)
	err := row.Scan(&id, &userID, &mobileUserID, &t.TokenHash, &t.ExpiresAt, &t.IsRevoked, &familyID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RefreshToken{}, ErrNotFound
		}
		return domain.RefreshToken{}, err
	}
	t.ID = uuidStr(id)
	t.UserID = uuidStr(userID)
	t.MobileUserID = uuidStr(mobileUserID)
	t.FamilyID = uuidStr(familyID)
	return t, nil
}

const refreshTokenColumns = `id, user_id, mobile_user_id, token_hash, expires_at, is_revoked, family_id, created_at`

func (r *RefreshTokenRepo) GetByID(ctx context.Context, id string) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE id = $1`, uuidParam(id))
	t, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("get refresh token: %w", err)
	}
	return t, nil
}

// Issue inserts a new row. familyID is the lineage id: pass "" to start a
// new family (the DB generates one), or an existing family id to keep
// rotating it.
func (r *RefreshTokenRepo) Issue(ctx context.Context, userID, mobileUserID, tokenHash, familyID string, expiresAt time.Time) (domain.RefreshToken, error) {
	fam := familyID
	row := r.db.QueryRow(ctx, `
		INSERT INTO refresh_tokens (id, user_id, mobile_user_id, token_hash, expires_at, is_revoked, family_id, created_at)
		VALUES (gen_random_uuid(), NULLIF($1,'')::uuid, NULLIF($2,'')::uuid, $3, $4, false,
			COALESCE(NULLIF($5,'')::uuid, gen_random_uuid()), now())
		RETURNING `+refreshTokenColumns,
		userID, mobileUserID, tokenHash, expiresAt, fam)
	t, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return t, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET is_revoked = true WHERE id = $1`, uuidParam(id))
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeFamily marks every row sharing familyID as revoked -- the
// "nuclear option" reuse-detection response.
func (r *RefreshTokenRepo) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET is_revoked = true WHERE family_id = $1`, uuidParam(familyID))
	if err != nil {
		return fmt.Errorf("revoke refresh token family: %w", err)
	}
	return nil
}
