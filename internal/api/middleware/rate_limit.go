package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/liquidity-settlement/internal/api/problem"
	"github.com/ayo6706/liquidity-settlement/internal/observability"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

const (
	scopePublic = "public"
	scopeCaller = "caller"
)

// PublicRateLimiter limits unauthenticated routes per client IP.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return rateLimiter(rps, scopePublic, httprate.KeyByIP)
}

// CallerRateLimiter limits each authenticated subsystem separately, keyed by
// token subject. It must run after the Authenticator.
func CallerRateLimiter(rps int) func(http.Handler) http.Handler {
	return rateLimiter(rps, scopeCaller, func(r *http.Request) (string, error) {
		if caller := CallerFromContext(r.Context()); caller != "" {
			return caller, nil
		}
		return httprate.KeyByIP(r)
	})
}

func rateLimiter(rps int, scope string, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			caller := callerLabel(r.Context())
			observability.IncrementRateLimited(scope, caller)
			zap.L().Warn("rate limit exceeded",
				zap.String("scope", scope),
				zap.String("caller", caller),
				zap.String("route", routePattern(r)),
			)
			problem.Write(w, r, http.StatusTooManyRequests, problem.Type("rate-limit-exceeded"), "",
				fmt.Sprintf("Rate limit of %d req/s exceeded (%s)", rps, scope))
		}),
	)
}
