package core

import "time"

// Client es un cliente OAuth registrado. Inmutable salvo actualización
// administrativa explícita.
type Client struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"client_id"`
	Name            string    `json:"name"`
	// Hash argon2id del secret. Vacío para public clients (spa/native).
	SecretHash      string    `json:"-"`
	ApplicationType string    `json:"application_type"` // web | spa | native | service
	RedirectURIs    []string  `json:"redirect_uris"`
	Scopes          []string  `json:"scopes"`
	CreatedAt       time.Time `json:"created_at"`
}

// Public indica si el client autentica solo por client_id (sin secret).
func (c *Client) Public() bool { return c.SecretHash == "" }

// User es el registro mínimo que el IdP necesita del directorio de usuarios.
// El dominio académico (tasks, files, subjects) vive en otro servicio.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	CreatedAt     time.Time
}

// RefreshToken es un miembro de una familia de rotación. El secreto plano
// jamás se persiste: solo su hash SHA-256 (base64url).
type RefreshToken struct {
	ID         string
	TokenHash  string
	ClientID   string
	UserID     string
	Scope      string // scopes separados por espacio
	FamilyID   string // compartido por todas las rotaciones de un grant
	Generation int    // 1 en el grant original, +1 por rotación
	// Momento de la autenticación del usuario que originó la familia.
	// Se hereda tal cual en cada rotación (rotar no re-autentica).
	AuthTime time.Time
	RotatedAt  *time.Time
	RevokedAt  *time.Time
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Active: ni rotado, ni revocado, ni expirado.
func (rt *RefreshToken) Active(now time.Time) bool {
	return rt.RotatedAt == nil && rt.RevokedAt == nil && now.Before(rt.ExpiresAt)
}
