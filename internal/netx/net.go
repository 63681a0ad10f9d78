// Package netx resolves the caller's address so it can be recorded on
// activity log rows.
package netx

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey struct{}

// ClientIP returns the host part of r.RemoteAddr. Run it behind
// middleware.RealIP so proxies' X-Forwarded-For/X-Real-IP are honoured.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// WithClientIP stores ip in ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ip)
}

// ClientIPFrom returns the ip stored by WithClientIP, or "".
func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(ctxKey{}).(string)
	return ip
}

// Middleware records ClientIP(r) in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithClientIP(r.Context(), ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
