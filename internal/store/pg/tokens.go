package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campuskit/idp/internal/store/core"
)

const refreshCols = `id, token_hash, client_id, user_id, scope, family_id, generation,
	auth_time, rotated_at, revoked_at, expires_at, created_at`

func scanRefresh(row pgx.Row) (*core.RefreshToken, error) {
	var rt core.RefreshToken
	err := row.Scan(
		&rt.ID, &rt.TokenHash, &rt.ClientID, &rt.UserID, &rt.Scope,
		&rt.FamilyID, &rt.Generation, &rt.AuthTime, &rt.RotatedAt, &rt.RevokedAt,
		&rt.ExpiresAt, &rt.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, rt *core.RefreshToken) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO oauth_refresh_token
		    (token_hash, client_id, user_id, scope, family_id, generation, auth_time, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		rt.TokenHash, rt.ClientID, rt.UserID, rt.Scope, rt.FamilyID, rt.Generation, rt.AuthTime, rt.ExpiresAt,
	)
	return row.Scan(&rt.ID, &rt.CreatedAt)
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+refreshCols+`
		  FROM oauth_refresh_token
		 WHERE token_hash = $1`, tokenHash,
	)
	return scanRefresh(row)
}

// MarkRefreshTokenRotated: compare-and-set en una sola sentencia. Dos
// rotaciones concurrentes sobre el mismo hash: el WHERE garantiza que solo
// una fila gana; la otra obtiene ErrNotFound y el caller decide.
func (s *Store) MarkRefreshTokenRotated(ctx context.Context, tokenHash string, at time.Time) (*core.RefreshToken, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE oauth_refresh_token
		   SET rotated_at = $2
		 WHERE token_hash = $1
		   AND rotated_at IS NULL
		   AND revoked_at IS NULL
		   AND expires_at > $2
		RETURNING `+refreshCols, tokenHash, at,
	)
	return scanRefresh(row)
}

func (s *Store) RevokeRefreshTokenByHash(ctx context.Context, tokenHash string, at time.Time) error {
	// Idempotente: el filtro revoked_at IS NULL hace que repetir sea no-op.
	_, err := s.pool.Exec(ctx, `
		UPDATE oauth_refresh_token
		   SET revoked_at = $2
		 WHERE token_hash = $1
		   AND revoked_at IS NULL`, tokenHash, at,
	)
	return err
}

func (s *Store) RevokeRefreshFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		UPDATE oauth_refresh_token
		   SET revoked_at = $2
		 WHERE family_id = $1
		   AND revoked_at IS NULL`, familyID, at,
	)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
