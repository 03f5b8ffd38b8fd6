package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/gateway"
)

// stubLimiter lets a test script exactly what Allow returns per scope,
// and records every call it received.
type stubLimiter struct {
	decisions map[gateway.RateLimitScope]gateway.RateLimitDecision
	errs      map[gateway.RateLimitScope]error
	calls     []gateway.RateLimitScope
}

func (s *stubLimiter) Allow(ctx context.Context, scope gateway.RateLimitScope, subject string, limit int) (gateway.RateLimitDecision, error) {
	s.calls = append(s.calls, scope)
	return s.decisions[scope], s.errs[scope]
}

func TestGuard_AdmitsOnUnreachableLimiterFailOpen(t *testing.T) {
	limiter := &stubLimiter{
		decisions: map[gateway.RateLimitScope]gateway.RateLimitDecision{
			gateway.ScopeWallet: {Allowed: true},
			gateway.ScopeUser:   {Allowed: true},
			gateway.ScopeGlobal: {Allowed: true},
		},
		errs: map[gateway.RateLimitScope]error{
			gateway.ScopeWallet: errors.New("redisrate: store unreachable: dial tcp: connection refused"),
		},
	}
	guard := New(limiter, Limits{Wallet: 60, User: 300, Global: 1000})

	err := guard.Check(context.Background(), "wallet-1", "user-1")

	require.NoError(t, err, "a backing-store error must not block the request")
	assert.Equal(t, []gateway.RateLimitScope{gateway.ScopeWallet, gateway.ScopeUser, gateway.ScopeGlobal}, limiter.calls)
}

func TestGuard_RejectsWhenScopeDisallows(t *testing.T) {
	limiter := &stubLimiter{
		decisions: map[gateway.RateLimitScope]gateway.RateLimitDecision{
			gateway.ScopeWallet: {Allowed: false, ResetAt: 1000},
		},
	}
	guard := New(limiter, Limits{Wallet: 60, User: 300, Global: 1000})

	err := guard.Check(context.Background(), "wallet-1", "user-1")

	require.Error(t, err)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindRateLimitExceeded, de.Kind)
	// wallet scope rejected, so user/global are never consulted.
	assert.Equal(t, []gateway.RateLimitScope{gateway.ScopeWallet}, limiter.calls)
}

func TestGuard_SkipsWalletScopeWhenWalletIDEmpty(t *testing.T) {
	limiter := &stubLimiter{
		decisions: map[gateway.RateLimitScope]gateway.RateLimitDecision{
			gateway.ScopeUser:   {Allowed: true},
			gateway.ScopeGlobal: {Allowed: true},
		},
	}
	guard := New(limiter, Limits{Wallet: 60, User: 300, Global: 1000})

	err := guard.Check(context.Background(), "", "user-1")

	require.NoError(t, err)
	assert.Equal(t, []gateway.RateLimitScope{gateway.ScopeUser, gateway.ScopeGlobal}, limiter.calls,
		"a request with no wallet in play (e.g. wallet creation) must not hit the shared empty-subject wallet bucket")
}

func TestGuard_SkipsUnconfiguredScopes(t *testing.T) {
	limiter := &stubLimiter{}
	guard := New(limiter, Limits{Wallet: 0, User: 0, Global: 0})

	err := guard.Check(context.Background(), "wallet-1", "user-1")

	require.NoError(t, err)
	assert.Empty(t, limiter.calls)
}
