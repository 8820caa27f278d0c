package core

import (
	"context"
	"time"
)

// ClientRepository expone los clients OAuth registrados.
type ClientRepository interface {
	GetClientByClientID(ctx context.Context, clientID string) (*Client, error)
	CreateClient(ctx context.Context, c *Client) error
}

// UserRepository es la interfaz de lookup contra el directorio de usuarios.
// El alta/gestión de cuentas es un colaborador externo; acá solo leemos
// (CreateUser existe para seeds y tests).
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
}

// TokenRepository persiste refresh tokens por hash. Las mutaciones son
// updates condicionales de un solo registro: nada de transacciones
// multi-documento. "revocado" es un flag monotónico e idempotente.
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, rt *RefreshToken) error

	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// MarkRefreshTokenRotated marca el token como rotado solo si sigue
	// activo (compare-and-set sobre rotated_at/revoked_at/expires_at).
	// Dos rotaciones concurrentes sobre el mismo hash: exactamente una gana,
	// la otra recibe ErrNotFound.
	MarkRefreshTokenRotated(ctx context.Context, tokenHash string, at time.Time) (*RefreshToken, error)

	// RevokeRefreshTokenByHash es idempotente: revocar algo ya revocado
	// o inexistente no es error.
	RevokeRefreshTokenByHash(ctx context.Context, tokenHash string, at time.Time) error

	// RevokeRefreshFamily revoca todos los miembros de la familia.
	// Idempotente y tolerante a aplicación parcial.
	RevokeRefreshFamily(ctx context.Context, familyID string, at time.Time) (int64, error)
}

// Repository agrupa todo lo que el core necesita de persistencia.
type Repository interface {
	ClientRepository
	UserRepository
	TokenRepository

	Ping(ctx context.Context) error
	Close()
}
