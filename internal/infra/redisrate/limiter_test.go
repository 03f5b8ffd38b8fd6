package redisrate

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/gateway"
)

func TestLimiter_AllowFailsOpenWhenStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	l := New(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // simulate an unreachable store: the pool refuses to hand out a connection

	decision, err := l.Allow(ctx, gateway.ScopeWallet, "wallet-1", 10)

	require.Error(t, err, "the store error must still be surfaced for logging")
	assert.True(t, decision.Allowed, "a store failure must fail open and admit the request")
}
