// Command api serves the wallet ledger's HTTP surface: wallet creation,
// deposit/withdraw/transfer, balance reads, and journal history. It wires
// the money engine over Postgres, a Redis-backed rate limiter, and the
// RabbitMQ event log behind a chi router.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/config"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/engine"
	wallethttp "github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/http"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/postgres"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/rabbitmq"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/redisrate"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/ratelimit"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/relay"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("service", "api").Logger()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.PostgresDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")
	store := postgres.NewStore(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis is not reachable, rate limiting will fail open for every request")
	} else {
		log.Info().Msg("connected to redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
	}()
	limiter := redisrate.New(redisClient)
	guard := ratelimit.New(limiter, ratelimit.Limits{
		Wallet: cfg.RateLimitWallet,
		User:   cfg.RateLimitUser,
		Global: cfg.RateLimitGlobal,
	})

	relayConn, err := amqp.DialConfig(cfg.RabbitURL(), amqp.Config{
		Properties: amqp.Table{"connection_name": "wallet-api-relay"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer func() {
		if err := relayConn.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close rabbitmq connection")
		}
	}()
	log.Info().Msg("connected to rabbitmq")

	relayCh, err := relayConn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open rabbitmq channel")
	}
	relayEventLog, err := rabbitmq.NewEventLog(relayCh, cfg.Exchange, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare event log exchange")
	}

	eng := engine.New(store, engine.Limits{
		MaxTransactionAmount: cfg.MaxTransactionAmount,
		MaxWalletBalance:     cfg.MaxWalletBalance,
	})

	// The outbox relay runs in-process alongside the API so a single
	// deployable unit keeps mutation traffic and event delivery together;
	// cmd/relay exists separately for deployments that split them.
	r := relay.New(store, relayEventLog, relay.Config{
		PollInterval: cfg.RelayPollInterval,
		BatchSize:    cfg.RelayBatchSize,
		Stream:       cfg.Exchange,
	}, log)
	go func() {
		if err := r.Run(ctx); err != nil {
			log.Error().Err(err).Msg("outbox relay exited with error")
		}
	}()

	router := wallethttp.NewRouter(eng, guard)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("api server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("api server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server did not shut down cleanly")
	}
}
