// Package http assembles the chi router exposing the money engine, wiring
// together the handler and middleware packages.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/engine"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/http/handler"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/http/middleware"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/ratelimit"
)

// NewRouter builds the full HTTP surface over eng, with the rate-limit
// gauntlet in front of every mutating route.
func NewRouter(eng *engine.Engine, guard *ratelimit.Guard) http.Handler {
	h := handler.New(eng)
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/wallets", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.With(middleware.RateLimit(guard, "")).Post("/", h.Create)

		r.Route("/{walletID}", func(r chi.Router) {
			r.Get("/", h.Balance)
			r.Get("/journal", h.History)
			r.With(middleware.RateLimit(guard, "walletID")).Post("/deposit", h.Deposit)
			r.With(middleware.RateLimit(guard, "walletID")).Post("/withdraw", h.Withdraw)
			r.With(middleware.RateLimit(guard, "walletID")).Post("/transfer", h.Transfer)
		})
	})

	return r
}
