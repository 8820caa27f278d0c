package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campuskit/idp/internal/store/core"
)

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	var u core.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, email_verified, COALESCE(name,''), created_at
		  FROM app_user
		 WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.EmailVerified, &u.Name, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	// Mismo contrato que el store en memoria: un ID del caller se respeta,
	// vacío genera uno.
	err := s.pool.QueryRow(ctx, `
		INSERT INTO app_user (id, email, email_verified, name)
		VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, $3, NULLIF($4,''))
		RETURNING id, created_at`,
		u.ID, u.Email, u.EmailVerified, u.Name,
	).Scan(&u.ID, &u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return core.ErrConflict
	}
	return err
}
