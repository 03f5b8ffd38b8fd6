package gateway

import "context"

// RateLimitScope is one of the three scopes consulted, in order, for a
// mutating request.
type RateLimitScope string

const (
	ScopeWallet RateLimitScope = "wallet"
	ScopeUser   RateLimitScope = "user"
	ScopeGlobal RateLimitScope = "global"
)

// RateLimitDecision reports whether a request was admitted.
type RateLimitDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   int64 // unix seconds
}

// RateLimiter is the shared sliding-window counter's contract. Adapters
// must fail open: a backing-store error is reported to the caller, which
// treats it as an admit rather than a reject.
type RateLimiter interface {
	Allow(ctx context.Context, scope RateLimitScope, subject string, limit int) (RateLimitDecision, error)
}
