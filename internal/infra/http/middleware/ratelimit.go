package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/http/httpx"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/ratelimit"
)

// RateLimit runs the wallet/user/global gauntlet (internal/ratelimit) for
// every mutating request before it reaches the handler. walletIDParam names
// the chi URL parameter carrying the wallet id; routes with no wallet in
// scope (wallet creation) pass "" and the guard skips that scope entirely
// rather than rate-limiting every caller against one shared bucket.
func RateLimit(guard *ratelimit.Guard, walletIDParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			walletID := chi.URLParam(r, walletIDParam)
			userID := UserID(r.Context())

			if err := guard.Check(r.Context(), walletID, userID); err != nil {
				httpx.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
