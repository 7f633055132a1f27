package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const tenantContextKey contextKey = "tenant"

// authenticate extracts and verifies a "Bearer <jwt>" Authorization header,
// attaching the token's "tenant" claim to the request context. A request
// with no token, or one that fails verification, is rejected with 401
// unless the server allows anonymous access, in which case it proceeds
// unscoped.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if token == "" {
			if s.config.AllowAnonymous {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		tenantID, err := s.verifyToken(token)
		if err != nil {
			if s.config.AllowAnonymous {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), tenantContextKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verifyToken validates an HMAC-signed JWT and returns its "tenant" claim.
func (s *Server) verifyToken(token string) (string, error) {
	if len(s.config.JWTSecret) == 0 {
		return "", fmt.Errorf("server: no JWT secret configured")
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.config.JWTSecret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("server: invalid token")
	}

	tenantID, _ := claims["tenant"].(string)
	if tenantID == "" {
		return "", fmt.Errorf("server: token missing tenant claim")
	}
	return tenantID, nil
}

// tenantFromContext returns the authenticated tenant id, if any.
func tenantFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantContextKey).(string)
	return tenantID, ok
}
