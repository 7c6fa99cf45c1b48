package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/chemflux/internal/config"
)

// Authenticate returns middleware that accepts either an X-API-Key header
// matching a configured key or HTTP Basic credentials matching a configured
// user:password pair. When RequireAuth is false every request passes.
func Authenticate(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	users := parseBasicUsers(cfg.BasicAuthUsers)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAuth {
				next.ServeHTTP(w, r)
				return
			}

			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				if !isValidAPIKey(apiKey, cfg.APIKeys) {
					logAuthFailure(r, "invalid API key")
					writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if user, pass, ok := r.BasicAuth(); ok {
				if !isValidBasicAuth(user, pass, users) {
					logAuthFailure(r, "invalid basic credentials")
					w.Header().Set("WWW-Authenticate", `Basic realm="chemflux", charset="UTF-8"`)
					writeAuthError(w, http.StatusUnauthorized, "invalid credentials", "AUTH_INVALID_CREDENTIALS")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			logAuthFailure(r, "missing credentials")
			if len(users) > 0 {
				w.Header().Set("WWW-Authenticate", `Basic realm="chemflux", charset="UTF-8"`)
			}
			writeAuthError(w, http.StatusUnauthorized, "missing credentials", "AUTH_MISSING_CREDENTIALS")
		})
	}
}

type basicUser struct {
	name     []byte
	password []byte
}

func parseBasicUsers(entries []string) []basicUser {
	users := make([]basicUser, 0, len(entries))
	for _, e := range entries {
		name, pass, ok := strings.Cut(e, ":")
		if !ok || name == "" {
			continue
		}
		users = append(users, basicUser{name: []byte(name), password: []byte(pass)})
	}
	return users
}

// isValidAPIKey checks if the provided key matches any configured key.
// Uses constant-time comparison and checks ALL keys to prevent timing attacks.
// The comparison time is constant regardless of which key matches (or none).
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

// isValidBasicAuth compares against every user, same as isValidAPIKey.
func isValidBasicAuth(user, pass string, users []basicUser) bool {
	valid := 0
	for _, u := range users {
		valid |= subtle.ConstantTimeCompare([]byte(user), u.name) &
			subtle.ConstantTimeCompare([]byte(pass), u.password)
	}
	return valid == 1
}

func logAuthFailure(r *http.Request, reason string) {
	slog.Warn("auth: "+reason,
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
	)
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
