// Package memory implementa core.Repository en memoria, para desarrollo y
// tests. Mismas garantías de CAS que el adapter de Postgres, con un mutex.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/idp/internal/store/core"
)

type Store struct {
	mu      sync.Mutex
	clients map[string]*core.Client       // por client_id
	users   map[string]*core.User         // por id
	tokens  map[string]*core.RefreshToken // por token_hash
}

func New() *Store {
	return &Store{
		clients: make(map[string]*core.Client),
		users:   make(map[string]*core.User),
		tokens:  make(map[string]*core.RefreshToken),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

// ----- clients -----

func (s *Store) GetClientByClientID(ctx context.Context, clientID string) (*core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) CreateClient(ctx context.Context, c *core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ClientID]; ok {
		return core.ErrConflict
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	cp := *c
	s.clients[c.ClientID] = &cp
	return nil
}

// ----- users -----

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, ok := s.users[u.ID]; ok {
		return core.ErrConflict
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// ----- refresh tokens -----

func (s *Store) CreateRefreshToken(ctx context.Context, rt *core.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[rt.TokenHash]; ok {
		return core.ErrConflict
	}
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = time.Now().UTC()
	}
	cp := *rt
	s.tokens[rt.TokenHash] = &cp
	return nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.tokens[tokenHash]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (s *Store) MarkRefreshTokenRotated(ctx context.Context, tokenHash string, at time.Time) (*core.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.tokens[tokenHash]
	if !ok || !rt.Active(at) {
		// Mismo contrato que el WHERE condicional en Postgres
		return nil, core.ErrNotFound
	}
	t := at
	rt.RotatedAt = &t
	cp := *rt
	return &cp, nil
}

func (s *Store) RevokeRefreshTokenByHash(ctx context.Context, tokenHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt, ok := s.tokens[tokenHash]; ok && rt.RevokedAt == nil {
		t := at
		rt.RevokedAt = &t
	}
	return nil
}

func (s *Store) RevokeRefreshFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rt := range s.tokens {
		if rt.FamilyID == familyID && rt.RevokedAt == nil {
			t := at
			rt.RevokedAt = &t
			n++
		}
	}
	return n, nil
}
