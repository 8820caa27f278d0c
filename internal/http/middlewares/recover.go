package middlewares

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/campuskit/idp/internal/observability/logger"
)

// WithRecover captura panics y devuelve un 500 en lugar de crashear.
// Nunca filtra el detalle del panic al cliente. Escribe el JSON a mano
// para no depender del paquete http de arriba.
func WithRecover() Middleware {
	log := logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered",
						zap.String("request_id", RequestID(r.Context())),
						zap.String("path", r.URL.Path),
						zap.Any("panic", rec),
					)
					w.Header().Set("Content-Type", "application/json; charset=utf-8")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"server_error","error_description":"internal error","error_code":1500}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
