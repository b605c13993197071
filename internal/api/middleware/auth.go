package middleware

import (
	"net/http"
	"strings"

	"coinsignals/pkg/crypto"
)

// TokenAuth - middleware аутентификации по административному токену
//
// Ожидает заголовок Authorization: Bearer <token> и сверяет токен
// с bcrypt-хешем из конфигурации. Сам токен нигде не хранится.
//
// Пустой хеш означает, что аутентификация не сконфигурирована:
// все запросы отклоняются, а не пропускаются.
func TokenAuth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// preflight проходит без токена, браузер не шлёт его в OPTIONS
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if tokenHash == "" {
				http.Error(w, "authentication is not configured", http.StatusForbidden)
				return
			}

			token := bearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !crypto.TokenMatches(token, tokenHash) {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
