package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/streamlinks/internal/logger"
	"github.com/MrSnakeDoc/streamlinks/internal/utils"
)

// AllowOnlyCIDRS lets through only callers whose IP is in allowed (IPs or CIDRs).
// An empty list disables the check. trustProxy resolves the caller from proxy
// headers, see utils.ClientIP.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("ip allowlist enabled",
		logger.Int("rules", len(allowed)),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Debug("request rejected by ip allowlist",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
