// Package middleware adapts chi's request pipeline with the two concerns
// that sit in front of the money engine: caller identity extraction (the
// core only ever consumes an opaque user id) and the rate-limit gauntlet.
package middleware

import (
	"context"
	"net/http"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/http/httpx"
)

type contextKey int

const userIDKey contextKey = iota

// Identity reads the caller's user id off the X-User-Id header, trusted as
// already verified upstream of this service; the core consumes it only as
// an opaque user id. A missing header is unauthorized, not a zero-value
// user.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-Id")
		if userID == "" {
			httpx.WriteError(w, domain.NewError(domain.KindUnauthorized, "X-User-Id header is required"))
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID recovers the caller id Identity stashed in the request context.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
