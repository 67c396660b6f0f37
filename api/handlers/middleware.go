package handlers

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrCrossOrigin is returned for state-changing requests issued by another site.
	ErrCrossOrigin = errors.New("cross-origin request rejected")

	// ErrUnsupportedMediaType is returned for API writes without a JSON body type.
	ErrUnsupportedMediaType = errors.New("content type must be application/json")
)

// SameOrigin rejects requests another site made the browser send. Writes are
// signed with the server's key, so only pages served by this host may submit them.
// Requests without browser fetch metadata (CLI, API clients) pass.
func (h *Handler) SameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Sec-Fetch-Site") {
		case "", "same-origin", "none":
		default:
			h.writeError(w, r, ErrCrossOrigin)
			return
		}

		if origin := r.Header.Get("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host == "" || !strings.EqualFold(u.Host, r.Host) {
				h.writeError(w, r, ErrCrossOrigin)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects requests whose body is not declared as JSON.
func (h *Handler) RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			h.writeError(w, r, ErrUnsupportedMediaType)
			return
		}
		next.ServeHTTP(w, r)
	})
}
