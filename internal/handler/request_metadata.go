package handler

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/folio/backend/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestMetadata records the client IP, user agent, language, transport
// security and a request id on the request context. A well-formed incoming
// X-Request-ID is reused; otherwise a UUID is generated. The id is echoed on
// the response.
func RequestMetadata(trustedProxyCount int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if !requestIDPattern.MatchString(id) {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := r.Context()
			ctx = requestcontext.WithRequestID(ctx, id)
			ctx = requestcontext.WithClientIP(ctx, clientIP(r, trustedProxyCount))
			ctx = requestcontext.WithUserAgent(ctx, r.UserAgent())
			ctx = requestcontext.WithLanguage(ctx, primaryLanguage(r.Header.Get("Accept-Language")))
			ctx = requestcontext.WithSecure(ctx, isSecure(r))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// primaryLanguage returns the first tag of an Accept-Language header.
func primaryLanguage(header string) string {
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(first, ";")
	tag = strings.TrimSpace(tag)
	if tag == "*" || len(tag) > 35 {
		return ""
	}
	return tag
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
