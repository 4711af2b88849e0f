package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/technosupport/hikvision-bridge/internal/auth"
	"github.com/technosupport/hikvision-bridge/internal/tokens"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*tokens.Claims, error)
}

type JWTAuth struct {
	tokens  TokenValidator
	revoked auth.TokenRevocations // optional
}

// NewJWTAuth builds the bearer-token middleware. revoked may be nil when no
// Redis is configured; tokens then stay valid until they expire.
func NewJWTAuth(t TokenValidator, revoked auth.TokenRevocations) *JWTAuth {
	return &JWTAuth{tokens: t, revoked: revoked}
}

// Middleware verifies the bearer token (or ?token= for websocket upgrades)
// and injects AuthContext.
func (m *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if m.revoked != nil {
			revoked, err := m.revoked.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				// Fail closed
				log.Printf("[WARN] revocation lookup failed: %v", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if revoked {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		ac := &AuthContext{
			Operator: claims.Operator,
			Scope:    claims.Scope,
			TokenID:  claims.ID,
		}
		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
	})
}

// RequireScope rejects requests whose token does not cover scope.
func RequireScope(scope tokens.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := GetAuthContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			claims := tokens.Claims{Scope: ac.Scope}
			if !claims.Allows(scope) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if t := r.URL.Query().Get("token"); t != "" && isWebsocketUpgrade(r) {
			return t, true
		}
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
