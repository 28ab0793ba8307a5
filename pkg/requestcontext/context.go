// Package requestcontext provides HTTP-independent accessors for
// request-scoped values set by middleware and read by handlers and services.
//
//	ctx = requestcontext.WithRequestID(ctx, id)
//	requestID := requestcontext.RequestID(ctx)
package requestcontext

import "context"

type (
	clientIPKey  struct{}
	userAgentKey struct{}
	languageKey  struct{}
	secureKey    struct{}
	requestIDKey struct{}
)

// ClientIP returns the client IP resolved by middleware, or "".
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// UserAgent returns the raw User-Agent header, or "".
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey{}).(string)
	return v
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// Language returns the primary language tag from Accept-Language, or "".
func Language(ctx context.Context) string {
	v, _ := ctx.Value(languageKey{}).(string)
	return v
}

func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, languageKey{}, lang)
}

// Secure reports whether the request arrived over TLS.
func Secure(ctx context.Context) bool {
	v, _ := ctx.Value(secureKey{}).(bool)
	return v
}

func WithSecure(ctx context.Context, secure bool) context.Context {
	return context.WithValue(ctx, secureKey{}, secure)
}

// RequestID returns the correlation id for the request, or "".
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
