// Package ratelimit enforces a fixed scope ordering for a mutating
// request: wallet, then user, then global, with the first rejecting scope
// short-circuiting the rest.
package ratelimit

import (
	"context"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/gateway"
)

// Limits holds the per-minute thresholds for each scope. A non-positive
// value leaves that scope unenforced.
type Limits struct {
	Wallet int
	User   int
	Global int
}

// Guard consults wallet, user, and global scopes in order for a mutating
// request, returning a rate_limit_exceeded error from the first scope that
// rejects. Backing-store errors from limiter are swallowed here too: the
// limiter has already failed open and returned Allowed=true.
type Guard struct {
	limiter gateway.RateLimiter
	limits  Limits
}

// New constructs a Guard over limiter with the given per-scope limits.
func New(limiter gateway.RateLimiter, limits Limits) *Guard {
	return &Guard{limiter: limiter, limits: limits}
}

// Check runs the wallet/user/global gauntlet for one mutating request.
func (g *Guard) Check(ctx context.Context, walletID, userID string) error {
	scopes := []struct {
		scope   gateway.RateLimitScope
		subject string
		limit   int
	}{
		{gateway.ScopeWallet, walletID, g.limits.Wallet},
		{gateway.ScopeUser, userID, g.limits.User},
		{gateway.ScopeGlobal, "*", g.limits.Global},
	}

	for _, s := range scopes {
		if s.limit <= 0 {
			continue // unconfigured scopes are not enforced
		}
		if s.scope == gateway.ScopeWallet && s.subject == "" {
			continue // no wallet in play for this request (e.g. wallet creation)
		}
		decision, _ := g.limiter.Allow(ctx, s.scope, s.subject, s.limit)
		if !decision.Allowed {
			return domain.RateLimitExceeded(string(s.scope), s.subject, decision.ResetAt)
		}
	}
	return nil
}
