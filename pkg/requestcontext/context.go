// Package requestcontext carries request-scoped values from HTTP middleware to
// services without importing net/http.
//
// Middleware stores the authenticated principal, correlation data and the
// request clock. Services read them:
//
//	principal, ok := requestcontext.Principal(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject them directly:
//
//	ctx = requestcontext.WithPrincipal(ctx, domain.Principal{ID: uid, Role: domain.RoleReviewer})
//	ctx = requestcontext.WithTime(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
package requestcontext

import (
	"context"
	"time"

	"docdesk/pkg/domain"
)

type ctxKey int

const (
	keyPrincipal ctxKey = iota
	keyClientIP
	keyUserAgent
	keyRequestID
	keyRequestTime
)

// Principal returns the principal established by the auth middleware.
func Principal(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(keyPrincipal).(domain.Principal)
	return p, ok
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, keyPrincipal, p)
}

func ClientIP(ctx context.Context) string {
	return stringValue(ctx, keyClientIP)
}

func UserAgent(ctx context.Context) string {
	return stringValue(ctx, keyUserAgent)
}

// WithClientMetadata stores the caller's address and User-Agent for audit enrichment.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

func RequestID(ctx context.Context) string {
	return stringValue(ctx, keyRequestID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now returns the time captured when the request started, or time.Now when
// the context did not come through the HTTP stack (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(keyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
