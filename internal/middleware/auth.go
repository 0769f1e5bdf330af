package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenMiddleware sprawdza token dostępu: parametr ?token= albo nagłówek
// "Authorization: Bearer <token>". Pusty token wyłącza sprawdzanie.
func TokenMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health check dostępny bez tokenu
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if !validToken(requestToken(r), token) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func validToken(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
