// Package refresh implementa la máquina de estados de refresh tokens:
// emisión por familia, rotación con compare-and-set, detección de reuso
// y revocación en cascada.
//
// Estados por token: active → rotated | revoked (terminales, junto a expired).
// Invariante: a lo sumo un token activo por familia. Presentar un miembro
// no-activo de la familia mata la familia entera.
package refresh

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuskit/idp/internal/audit"
	"github.com/campuskit/idp/internal/metrics"
	"github.com/campuskit/idp/internal/observability/logger"
	tokens "github.com/campuskit/idp/internal/security/token"
	"github.com/campuskit/idp/internal/store/core"
	"github.com/campuskit/idp/internal/validation"
)

var (
	// ErrInvalidGrant cubre uniformemente token inexistente, expirado,
	// revocado, reusado o de otro client. No se distingue cuál hacia afuera.
	ErrInvalidGrant = errors.New("refresh: invalid grant")

	// ErrInvalidScope: el scope pedido excede el scope otorgado originalmente.
	ErrInvalidScope = errors.New("refresh: requested scope exceeds granted scope")

	// ErrOwnershipMismatch: el token pertenece a otro client que el autenticado.
	// El revoke handler lo mapea a 400 invalid_grant (endurecimiento deliberado
	// sobre RFC 7009).
	ErrOwnershipMismatch = errors.New("refresh: token owned by another client")
)

// Grant es el resultado de Issue/Rotate. Plain se muestra una sola vez;
// después solo existe el hash.
type Grant struct {
	Plain  string
	Record *core.RefreshToken
}

type Engine struct {
	repo core.TokenRepository
	ttl  time.Duration
	log  *zap.Logger
}

func NewEngine(repo core.TokenRepository, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	return &Engine{repo: repo, ttl: ttl, log: logger.Named("refresh")}
}

// Issue crea una familia nueva: familyId fresco, generación 1. authTime es
// el momento de la autenticación del usuario; las rotaciones lo heredan.
func (e *Engine) Issue(ctx context.Context, clientID, userID, scope string, authTime time.Time) (*Grant, error) {
	if authTime.IsZero() {
		authTime = time.Now().UTC()
	}
	return e.persistNew(ctx, clientID, userID, scope, uuid.NewString(), 1, authTime)
}

func (e *Engine) persistNew(ctx context.Context, clientID, userID, scope, familyID string, generation int, authTime time.Time) (*Grant, error) {
	plain, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	rec := &core.RefreshToken{
		TokenHash:  tokens.SHA256Base64URL(plain),
		ClientID:   clientID,
		UserID:     userID,
		Scope:      scope,
		FamilyID:   familyID,
		Generation: generation,
		AuthTime:   authTime,
		ExpiresAt:  time.Now().UTC().Add(e.ttl),
	}
	if err := e.repo.CreateRefreshToken(ctx, rec); err != nil {
		return nil, err
	}
	return &Grant{Plain: plain, Record: rec}, nil
}

// Rotate valida y rota el token presentado. requestedScope vacío hereda el
// scope del token; uno no-vacío debe ser subconjunto (monotonía no-creciente
// a través de las generaciones).
func (e *Engine) Rotate(ctx context.Context, plain, clientID, requestedScope string) (*Grant, error) {
	hash := tokens.SHA256Base64URL(plain)
	now := time.Now().UTC()

	cur, err := e.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	// Miembro superseded presentado de nuevo: señal de robo. Se revoca la
	// familia completa, incondicionalmente, antes de responder.
	if cur.RotatedAt != nil {
		e.nukeFamily(ctx, cur, now, "superseded token replayed")
		return nil, ErrInvalidGrant
	}
	if cur.RevokedAt != nil || !now.Before(cur.ExpiresAt) {
		return nil, ErrInvalidGrant
	}
	// Token en manos de un client que no es el dueño: misma señal.
	if cur.ClientID != clientID {
		e.nukeFamily(ctx, cur, now, "client ownership mismatch")
		return nil, ErrInvalidGrant
	}

	granted := validation.SplitScope(cur.Scope)
	requested := validation.SplitScope(requestedScope)
	if !validation.ScopeSubset(requested, granted) {
		// Sin mutación: pedir de más no quema el token.
		return nil, ErrInvalidScope
	}
	newScope := cur.Scope
	if len(requested) > 0 {
		newScope = strings.Join(requested, " ")
	}

	// CAS: de dos rotaciones concurrentes solo una marca rotated_at.
	// La perdedora cae acá con ErrNotFound y se trata como reuso.
	rotated, err := e.repo.MarkRefreshTokenRotated(ctx, hash, now)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			e.nukeFamily(ctx, cur, now, "lost rotation race")
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	g, err := e.persistNew(ctx, rotated.ClientID, rotated.UserID, newScope, rotated.FamilyID, rotated.Generation+1, rotated.AuthTime)
	if err != nil {
		return nil, err
	}
	e.log.Debug("refresh rotated",
		zap.String("family_id", rotated.FamilyID),
		zap.Int("generation", g.Record.Generation),
	)
	return g, nil
}

func (e *Engine) nukeFamily(ctx context.Context, rt *core.RefreshToken, now time.Time, reason string) {
	n, err := e.repo.RevokeRefreshFamily(ctx, rt.FamilyID, now)
	if err != nil {
		// La revocación parcial sigue bloqueando reuso: revoked es monotónico
		// y los miembros restantes caen en su próximo uso.
		e.log.Error("family revocation failed", zap.String("family_id", rt.FamilyID), zap.Error(err))
	}
	metrics.RefreshReuseDetected.Inc()
	audit.Log(ctx, audit.EventReuseDetected,
		zap.String("family_id", rt.FamilyID),
		zap.String("client_id", rt.ClientID),
		zap.String("reason", reason),
		zap.Int64("revoked", n),
	)
}

// Revoke revoca por token plano, cascada a la familia. Idempotente: token
// desconocido o ya revocado no es error (RFC 7009). Un token de otro client
// sí lo es: el caller no es dueño del recurso. Retorna si hubo un token
// al que aplicarle la revocación.
func (e *Engine) Revoke(ctx context.Context, plain, clientID string) (bool, error) {
	hash := tokens.SHA256Base64URL(plain)
	rt, err := e.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if rt.ClientID != clientID {
		return false, ErrOwnershipMismatch
	}
	if _, err := e.repo.RevokeRefreshFamily(ctx, rt.FamilyID, time.Now().UTC()); err != nil {
		return false, err
	}
	return true, nil
}

// Introspect devuelve el record si el token está activo. Inexistente,
// expirado, rotado y revocado responden igual: ok=false sin metadata.
// Un fallo del store NO es "inactivo": se devuelve el error para que el
// caller responda 503 en vez de mentir con active:false.
func (e *Engine) Introspect(ctx context.Context, plain string) (*core.RefreshToken, bool, error) {
	hash := tokens.SHA256Base64URL(plain)
	rt, err := e.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !rt.Active(time.Now().UTC()) {
		return nil, false, nil
	}
	return rt, true, nil
}
