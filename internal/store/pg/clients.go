package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campuskit/idp/internal/store/core"
)

func (s *Store) GetClientByClientID(ctx context.Context, clientID string) (*core.Client, error) {
	var c core.Client
	err := s.pool.QueryRow(ctx, `
		SELECT id, client_id, name, COALESCE(secret_hash,''), application_type,
		       redirect_uris, scopes, created_at
		  FROM oauth_client
		 WHERE client_id = $1`, clientID,
	).Scan(&c.ID, &c.ClientID, &c.Name, &c.SecretHash, &c.ApplicationType,
		&c.RedirectURIs, &c.Scopes, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, c *core.Client) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO oauth_client
		    (client_id, name, secret_hash, application_type, redirect_uris, scopes)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6)
		RETURNING id, created_at`,
		c.ClientID, c.Name, c.SecretHash, c.ApplicationType, c.RedirectURIs, c.Scopes,
	).Scan(&c.ID, &c.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return core.ErrConflict
	}
	return err
}
