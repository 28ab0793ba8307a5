package handler

import (
	"context"
	"net/http"
)

// DB is the store health check used by Health.
type DB interface {
	Ping(ctx context.Context) error
}

// MailStatus reports mail delivery readiness for Health.
type MailStatus interface {
	Configured() bool
	State() string
}

type Handler struct {
	db          DB
	frontendURL string
	mail        MailStatus
}

// New creates a Handler. A nil mail reports mail as not configured.
func New(db DB, frontendURL string, mail MailStatus) *Handler {
	return &Handler{db: db, frontendURL: frontendURL, mail: mail}
}

func (h *Handler) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.frontendURL)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
