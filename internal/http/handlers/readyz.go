package handlers

import (
	"net/http"
	"os"

	"github.com/campuskit/idp/internal/app"
	httpx "github.com/campuskit/idp/internal/http"
	"github.com/campuskit/idp/internal/observability/logger"
	"go.uber.org/zap"
)

// NewReadyzHandler verifica store, cache y la clave de firma antes de
// declararse listo. El self-check firma y verifica un JWT efímero: si la
// clave está corrupta preferimos caer aquí y no en el primer /oauth/token.
func NewReadyzHandler(c *app.Container) http.HandlerFunc {
	log := logger.Named("readyz")
	return func(w http.ResponseWriter, r *http.Request) {
		if v := os.Getenv("SERVICE_VERSION"); v != "" {
			w.Header().Set("X-Service-Version", v)
		}
		w.Header().Set("X-JWKS-KID", c.Issuer.Keys.KID())

		// 1) Store
		if err := c.Store.Ping(r.Context()); err != nil {
			log.Error("store unavailable", zap.Error(err))
			httpx.WriteError(w, http.StatusServiceUnavailable, "db_unavailable", "database unavailable", 2001)
			return
		}

		// 2) Cache
		if err := c.Cache.Ping(r.Context()); err != nil {
			log.Error("cache unavailable", zap.Error(err))
			httpx.WriteError(w, http.StatusServiceUnavailable, "cache_unavailable", "cache unavailable", 2002)
			return
		}

		// 3) Self-check RS256: firmar y verificar en memoria
		signed, _, err := c.Issuer.IssueAccess("selfcheck", "readyz", "")
		if err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "sign_failed", "no se pudo firmar self-check", 2004)
			return
		}
		claims, err := c.Issuer.Verify(signed)
		if err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "verify_failed", "self-check: verificación falló", 2005)
			return
		}
		if s, _ := claims["sub"].(string); s != "selfcheck" {
			httpx.WriteError(w, http.StatusServiceUnavailable, "verify_failed", "self-check: sub inesperado", 2006)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
