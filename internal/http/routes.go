package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/campuskit/idp/internal/http/middlewares"
	"github.com/campuskit/idp/internal/rate"
)

// Handlers agrupa la superficie HTTP del IdP. Se cablea en cmd/idp.
type Handlers struct {
	Readyz     stdhttp.Handler
	Discovery  stdhttp.Handler
	JWKS       stdhttp.Handler
	Token      stdhttp.Handler
	Introspect stdhttp.Handler
	Revoke     stdhttp.Handler
	UserInfo   stdhttp.Handler
}

// NewRouter monta las rutas. Los endpoints OAuth van con métricas por ruta;
// health y metrics quedan fuera de la instrumentación. limiter puede ser nil
// (throttling apagado).
func NewRouter(h Handlers, limiter rate.Limiter, reg prometheus.Registerer) (stdhttp.Handler, error) {
	metricsHandler, err := RegisterMetrics(reg)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middlewares.WithRequestID())
	r.Use(middlewares.WithRecover())
	r.Use(middlewares.WithLogging())

	// Health / observabilidad
	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/readyz", h.Readyz)
	r.Handle("/metrics", metricsHandler)

	// Documentos well-known (cacheables)
	cacheable := middlewares.WithCacheControl("public, max-age=600, must-revalidate")
	r.Handle("/.well-known/openid-configuration",
		WithMetrics("/.well-known/openid-configuration", h.Discovery))
	r.Handle("/.well-known/jwks.json",
		cacheable(WithMetrics("/.well-known/jwks.json", h.JWKS)))

	// OAuth2 / OIDC. El limitador cubre los endpoints que aceptan
	// credenciales o material adivinable.
	noStore := middlewares.WithNoStore()
	throttle := func(next stdhttp.Handler) stdhttp.Handler {
		if limiter == nil {
			return next
		}
		return middlewares.WithRateLimit(limiter)(next)
	}
	r.Handle("/oauth/token", throttle(noStore(WithMetrics("/oauth/token", h.Token))))
	r.Handle("/oauth/introspect", throttle(noStore(WithMetrics("/oauth/introspect", h.Introspect))))
	r.Handle("/oauth/revoke", throttle(noStore(WithMetrics("/oauth/revoke", h.Revoke))))
	r.Handle("/oauth/userinfo", noStore(WithMetrics("/oauth/userinfo", h.UserInfo)))

	return r, nil
}
