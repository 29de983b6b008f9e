package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/recimport/internal/config"
	"github.com/JonMunkholm/recimport/internal/core"
)

// apiKey is one accepted key and the caller it identifies.
type apiKey struct {
	name string
	key  []byte
}

// parseKeys splits "name=key" entries. A bare entry has no name.
func parseKeys(entries []string) []apiKey {
	keys := make([]apiKey, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		name, key, ok := strings.Cut(e, "=")
		if !ok {
			name, key = "", e
		}
		keys = append(keys, apiKey{name: strings.TrimSpace(name), key: []byte(strings.TrimSpace(key))})
	}
	return keys
}

// APIKeyAuth returns middleware that validates the X-API-Key header against
// configured keys. A named key makes its name the request's import author.
// If RequireAPIKey is false, all requests pass through.
// If RequireAPIKey is true but no keys are configured, all requests are rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := parseKeys(cfg.APIKeys)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get("X-API-Key")
			if presented == "" {
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			name, ok := matchKey(presented, keys)
			if !ok {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			if name != "" {
				r = r.WithContext(core.ContextWithAuthor(r.Context(), name))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// matchKey compares against every key in constant time so the duration
// does not reveal which key, if any, matched.
func matchKey(presented string, keys []apiKey) (string, bool) {
	var name string
	matched := 0
	for _, k := range keys {
		eq := subtle.ConstantTimeCompare([]byte(presented), k.key)
		if eq == 1 && matched == 0 {
			name = k.name
		}
		matched |= eq
	}
	return name, matched == 1
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","code":"` + code + `"}`))
}
