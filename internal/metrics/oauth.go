package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OAuth-related Prometheus metrics. Defined in a standalone package to avoid
// import cycles between the rotation engine and HTTP packages.

var (
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_tokens_issued_total",
		Help: "Tokens emitidos por grant_type",
	}, []string{"grant_type"})

	RefreshReuseDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth_refresh_reuse_detected_total",
		Help: "Detecciones de reuso de refresh token (familia revocada)",
	})

	TokensRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth_tokens_revoked_total",
		Help: "Revocaciones explícitas vía /oauth/revoke",
	})
)

// RegisterOAuth registers the oauth metrics on the given registry (or default if nil).
func RegisterOAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{TokensIssued, RefreshReuseDetected, TokensRevoked} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
