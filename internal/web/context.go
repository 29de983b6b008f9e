package web

import (
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/recimport/internal/core"
)

// requestAuthor picks the author of an uploaded file: the "author" form
// field, then the X-Author header, then the caller named by its API key.
// Empty means the service's default author.
func requestAuthor(r *http.Request) string {
	if a := strings.TrimSpace(r.FormValue("author")); a != "" {
		return a
	}
	if a := strings.TrimSpace(r.Header.Get("X-Author")); a != "" {
		return a
	}
	return core.AuthorFromContext(r.Context())
}

// clientIP returns RemoteAddr without its port. TrustedRealIP has already
// replaced it for proxied requests.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
