package middlewares

import (
	"net"
	"net/http"
	"strconv"

	"github.com/campuskit/idp/internal/observability/logger"
	"github.com/campuskit/idp/internal/rate"
	"go.uber.org/zap"
)

// WithRateLimit aplica el limitador por IP remota. No tocamos el body: el
// handler parsea el form una sola vez. Si el limitador falla dejamos pasar:
// preferimos degradar el throttling antes que tirar el endpoint de tokens.
func WithRateLimit(l rate.Limiter) Middleware {
	log := logger.Named("ratelimit")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				key = host
			}

			res, err := l.Allow(r.Context(), key)
			if err != nil {
				log.Warn("limiter no disponible", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				retry := int64(res.RetryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"slow_down","error_description":"demasiadas peticiones"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
