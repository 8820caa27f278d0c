package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campuskit/idp/internal/store/core"
	"github.com/campuskit/idp/internal/store/memory"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(memory.New(), time.Hour)
}

func TestIssueAndRotate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	g1, err := e.Issue(ctx, "client-1", "user-1", "openid profile", time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if g1.Record.Generation != 1 || g1.Record.FamilyID == "" {
		t.Fatalf("familia mal inicializada: %+v", g1.Record)
	}

	g2, err := e.Rotate(ctx, g1.Plain, "client-1", "")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if g2.Record.FamilyID != g1.Record.FamilyID {
		t.Fatal("la rotación debe preservar la familia")
	}
	if g2.Record.Generation != 2 {
		t.Fatalf("generation: %d", g2.Record.Generation)
	}
	if g2.Plain == g1.Plain {
		t.Fatal("el token rotado debe ser distinto")
	}
	if g2.Record.Scope != "openid profile" {
		t.Fatalf("scope heredado: %q", g2.Record.Scope)
	}
}

func TestRotate_ReuseKillsFamily(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	g1, _ := e.Issue(ctx, "client-1", "user-1", "openid", time.Now())
	g2, err := e.Rotate(ctx, g1.Plain, "client-1", "")
	if err != nil {
		t.Fatalf("primera rotación: %v", err)
	}

	// replay del token superseded
	if _, err := e.Rotate(ctx, g1.Plain, "client-1", ""); err != ErrInvalidGrant {
		t.Fatalf("replay debe dar invalid grant, got %v", err)
	}
	// y el sucesor legítimo también quedó muerto
	if _, err := e.Rotate(ctx, g2.Plain, "client-1", ""); err != ErrInvalidGrant {
		t.Fatalf("sucesor debe estar revocado tras el reuso, got %v", err)
	}
	if _, ok, _ := e.Introspect(ctx, g2.Plain); ok {
		t.Fatal("sucesor sigue activo tras matar la familia")
	}
}

func TestRotate_WrongClientKillsFamily(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	g1, _ := e.Issue(ctx, "client-1", "user-1", "openid", time.Now())
	if _, err := e.Rotate(ctx, g1.Plain, "client-2", ""); err != ErrInvalidGrant {
		t.Fatalf("client ajeno debe dar invalid grant, got %v", err)
	}
	// el dueño legítimo tampoco puede seguir usándolo
	if _, err := e.Rotate(ctx, g1.Plain, "client-1", ""); err != ErrInvalidGrant {
		t.Fatalf("familia debió morir, got %v", err)
	}
}

func TestRotate_ScopeMonotonic(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	g1, _ := e.Issue(ctx, "client-1", "user-1", "openid profile email", time.Now())

	// pedir de más no quema el token
	if _, err := e.Rotate(ctx, g1.Plain, "client-1", "openid admin"); err != ErrInvalidScope {
		t.Fatalf("scope excedido debe dar invalid scope, got %v", err)
	}
	g2, err := e.Rotate(ctx, g1.Plain, "client-1", "openid email")
	if err != nil {
		t.Fatalf("el token debe seguir vivo tras pedir de más: %v", err)
	}
	if g2.Record.Scope != "openid email" {
		t.Fatalf("narrowing: %q", g2.Record.Scope)
	}

	// una vez angostado, lo cedido no vuelve
	if _, err := e.Rotate(ctx, g2.Plain, "client-1", "openid profile"); err != ErrInvalidScope {
		t.Fatalf("scope cedido no puede recuperarse, got %v", err)
	}
}

func TestRotate_Expired(t *testing.T) {
	e := NewEngine(memory.New(), time.Millisecond)
	ctx := context.Background()

	g1, _ := e.Issue(ctx, "client-1", "user-1", "openid", time.Now())
	time.Sleep(5 * time.Millisecond)
	if _, err := e.Rotate(ctx, g1.Plain, "client-1", ""); err != ErrInvalidGrant {
		t.Fatalf("expirado debe dar invalid grant, got %v", err)
	}
}

func TestRotate_UnknownToken(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Rotate(context.Background(), "no-such-token", "client-1", ""); err != ErrInvalidGrant {
		t.Fatalf("token inexistente debe dar invalid grant, got %v", err)
	}
}

func TestRotate_ConcurrentSingleWinner(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	g1, _ := e.Issue(ctx, "client-1", "user-1", "openid", time.Now())

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Rotate(ctx, g1.Plain, "client-1", "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if err != ErrInvalidGrant {
			t.Fatalf("error inesperado: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactamente una rotación debe ganar, ganaron %d", wins)
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	g1, _ := e.Issue(ctx, "client-1", "user-1", "openid", time.Now())

	ok, err := e.Revoke(ctx, g1.Plain, "client-1")
	if err != nil || !ok {
		t.Fatalf("revoke: ok=%v err=%v", ok, err)
	}
	// repetir no es error
	if _, err := e.Revoke(ctx, g1.Plain, "client-1"); err != nil {
		t.Fatalf("revoke repetido debe ser idempotente: %v", err)
	}
	// token desconocido tampoco
	ok, err = e.Revoke(ctx, "nunca-existió", "client-1")
	if err != nil || ok {
		t.Fatalf("desconocido: ok=%v err=%v", ok, err)
	}
}

func TestRevoke_CascadesToFamily(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	g1, _ := e.Issue(ctx, "client-1", "user-1", "openid", time.Now())
	g2, _ := e.Rotate(ctx, g1.Plain, "client-1", "")
	g3, _ := e.Rotate(ctx, g2.Plain, "client-1", "")

	// revocar por un miembro viejo mata al activo
	if _, err := e.Revoke(ctx, g2.Plain, "client-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, ok, _ := e.Introspect(ctx, g3.Plain); ok {
		t.Fatal("el miembro activo sobrevivió a la revocación de la familia")
	}
}

func TestRevoke_OwnershipMismatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	g1, _ := e.Issue(ctx, "client-1", "user-1", "openid", time.Now())

	if _, err := e.Revoke(ctx, g1.Plain, "client-2"); err != ErrOwnershipMismatch {
		t.Fatalf("esperaba ownership mismatch, got %v", err)
	}
	// el token sigue vivo: la revocación ajena no surte efecto
	if _, ok, _ := e.Introspect(ctx, g1.Plain); !ok {
		t.Fatal("el token no debía morir por un revoke ajeno")
	}
}

func TestIntrospect_Uniform(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	g1, _ := e.Issue(ctx, "client-1", "user-1", "openid profile", time.Now())

	rt, ok, err := e.Introspect(ctx, g1.Plain)
	if err != nil || !ok {
		t.Fatal("token activo reportado inactivo")
	}
	if rt.Scope != "openid profile" || rt.ClientID != "client-1" || rt.UserID != "user-1" {
		t.Fatalf("metadata: %+v", rt)
	}

	// inexistente, rotado y revocado responden igual: inactivo sin metadata
	if rt, ok, _ := e.Introspect(ctx, "inventado"); ok || rt != nil {
		t.Fatal("inexistente debe ser inactivo")
	}
	g2, _ := e.Rotate(ctx, g1.Plain, "client-1", "")
	if rt, ok, _ := e.Introspect(ctx, g1.Plain); ok || rt != nil {
		t.Fatal("rotado debe ser inactivo")
	}
	_, _ = e.Revoke(ctx, g2.Plain, "client-1")
	if rt, ok, _ := e.Introspect(ctx, g2.Plain); ok || rt != nil {
		t.Fatal("revocado debe ser inactivo")
	}
}

func TestRotate_PreservesAuthTime(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	authTime := time.Now().UTC().Add(-30 * time.Minute).Truncate(time.Second)

	g1, err := e.Issue(ctx, "client-1", "user-1", "openid", authTime)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !g1.Record.AuthTime.Equal(authTime) {
		t.Fatalf("auth_time inicial: %v", g1.Record.AuthTime)
	}

	g2, _ := e.Rotate(ctx, g1.Plain, "client-1", "")
	g3, err := e.Rotate(ctx, g2.Plain, "client-1", "")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	// rotar no re-autentica: el auth_time original viaja intacto
	if !g3.Record.AuthTime.Equal(authTime) {
		t.Fatalf("auth_time tras dos rotaciones: %v, esperaba %v", g3.Record.AuthTime, authTime)
	}
}

// failingTokenRepo simula un store caído en la lectura por hash.
type failingTokenRepo struct {
	core.TokenRepository
}

func (failingTokenRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (*core.RefreshToken, error) {
	return nil, errors.New("pool: connection refused")
}

func TestIntrospect_StoreFailureSurfaces(t *testing.T) {
	e := NewEngine(failingTokenRepo{memory.New()}, time.Hour)

	rt, ok, err := e.Introspect(context.Background(), "cualquiera")
	if err == nil {
		t.Fatal("un store caído debe reportar error, no inactivo")
	}
	if ok || rt != nil {
		t.Fatalf("con error no puede haber metadata: ok=%v rt=%v", ok, rt)
	}
}
