package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/liquidity-settlement/internal/api/problem"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	callerContextKey contextKey = "caller"
	roleContextKey   contextKey = "caller_role"
)

// RoleService is the role granted to subsystems that place orders.
const RoleService = "service"

type callerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 bearer tokens issued to calling subsystems.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
}

func NewAuthenticator(secret, issuer, audience string) *Authenticator {
	return &Authenticator{
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
	}
}

// Middleware rejects requests without a valid token and stores the caller
// (the token subject) and its role in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), "", "Authorization header required")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), "", "Invalid token format")
			return
		}
		if len(a.secret) == 0 {
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), "", "auth is not configured")
			return
		}

		claims := &callerClaims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if a.issuer != "" {
			opts = append(opts, jwt.WithIssuer(a.issuer))
		}
		if a.audience != "" {
			opts = append(opts, jwt.WithAudience(a.audience))
		}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return a.secret, nil
		}, opts...)
		if err != nil || !token.Valid {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token"), "", "Invalid token")
			return
		}
		if claims.Subject == "" {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), "", "Invalid token claims")
			return
		}
		if info := requestInfoFrom(r.Context()); info != nil {
			info.caller = claims.Subject
		}
		ctx := context.WithValue(r.Context(), callerContextKey, claims.Subject)
		ctx = context.WithValue(ctx, roleContextKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole ensures the authenticated caller has the required role.
func RequireRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != requiredRole {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-permissions"), "", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerFromContext returns the authenticated caller.
func CallerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(callerContextKey).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(roleContextKey).(string); ok {
		return v
	}
	return ""
}
