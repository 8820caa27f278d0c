// Package audit emite el rastro de eventos de seguridad del IdP: emisión,
// rotación y revocación de tokens. Hoy sale por el logger estructurado; el
// sink puede cambiar sin tocar a los llamadores.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/campuskit/idp/internal/http/middlewares"
	"github.com/campuskit/idp/internal/observability/logger"
)

// Eventos conocidos. Los consumidores del rastro filtran por estos nombres.
const (
	EventTokenIssued    = "token.issued"
	EventTokenRotated   = "token.rotated"
	EventTokenRevoked   = "token.revoked"
	EventReuseDetected  = "token.reuse_detected"
	EventClientAuthFail = "client.auth_failed"
)

// Log registra un evento de auditoría con el request_id del contexto.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	all := make([]zap.Field, 0, len(fields)+2)
	all = append(all, zap.String("event", event))
	if rid := middlewares.RequestID(ctx); rid != "" {
		all = append(all, zap.String("request_id", rid))
	}
	all = append(all, fields...)
	logger.Named("audit").Info(event, all...)
}
