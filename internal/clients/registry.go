// Package clients implementa el Client Registry: autenticación de clients
// OAuth y validación de redirect URIs.
package clients

import (
	"context"
	"errors"

	"github.com/campuskit/idp/internal/security/secret"
	"github.com/campuskit/idp/internal/store/core"
)

// ErrInvalidClient es indiferenciado a propósito: no se distingue client_id
// desconocido de secret incorrecto.
var ErrInvalidClient = errors.New("clients: invalid client")

// dummyHash se verifica cuando el client no existe, para que el costo de la
// rama "desconocido" sea el mismo que el de "secret incorrecto".
var dummyHash = func() string {
	h, _ := secret.Hash(secret.Default, "dummy-timing-equalizer")
	return h
}()

type Registry struct {
	repo core.ClientRepository
}

func NewRegistry(repo core.ClientRepository) *Registry {
	return &Registry{repo: repo}
}

// Get busca un client por su client_id público.
func (r *Registry) Get(ctx context.Context, clientID string) (*core.Client, error) {
	return r.repo.GetClientByClientID(ctx, clientID)
}

// Authenticate valida identidad del client. Los public clients (spa/native,
// sin secret registrado) autentican solo por client_id; los confidenciales
// requieren el secret, comparado en tiempo constante vía argon2id.
func (r *Registry) Authenticate(ctx context.Context, clientID, clientSecret string) (*core.Client, error) {
	if clientID == "" {
		return nil, ErrInvalidClient
	}
	c, err := r.repo.GetClientByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			secret.Verify(clientSecret, dummyHash)
			return nil, ErrInvalidClient
		}
		return nil, err
	}
	if c.Public() {
		return c, nil
	}
	if !secret.Verify(clientSecret, c.SecretHash) {
		return nil, ErrInvalidClient
	}
	return c, nil
}

// ValidateRedirectURI exige match exacto de string. Sin prefijos ni
// subpaths: cierra open-redirects por rutas anidadas.
func (r *Registry) ValidateRedirectURI(c *core.Client, uri string) bool {
	if uri == "" {
		return false
	}
	for _, ru := range c.RedirectURIs {
		if ru == uri {
			return true
		}
	}
	return false
}
