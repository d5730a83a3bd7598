// pkg/middleware/auth.go
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"signalgateway/pkg/jwt"
)

type contextKey string

// ProducerKey holds the authenticated producer name in the request context.
const ProducerKey contextKey = "producer"

// BasicAuth returns middleware for basic authentication.
func BasicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !constantTimeCompare(user, username) || !constantTimeCompare(pass, password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// JWTAuth accepts requests carrying a valid producer bearer token.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			producer, err := jwt.ParseToken(secret, strings.TrimSpace(parts[1]))
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ProducerKey, producer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Producer returns the authenticated producer, if any.
func Producer(ctx context.Context) string {
	p, _ := ctx.Value(ProducerKey).(string)
	return p
}

func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
