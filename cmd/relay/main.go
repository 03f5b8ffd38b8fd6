// Command relay runs the transactional outbox relay as a standalone
// process, separated from the API process so the publish-retry loop
// survives independently of request traffic.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/config"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/postgres"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/rabbitmq"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/relay"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("service", "relay").Logger()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.PostgresDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	conn, err := amqp.DialConfig(cfg.RabbitURL(), amqp.Config{
		Properties: amqp.Table{"connection_name": "wallet-outbox-relay"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close rabbitmq connection")
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open rabbitmq channel")
	}
	defer func() {
		if err := ch.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close rabbitmq channel")
		}
	}()

	eventLog, err := rabbitmq.NewEventLog(ch, cfg.Exchange, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare event log exchange")
	}

	r := relay.New(store, eventLog, relay.Config{
		PollInterval: cfg.RelayPollInterval,
		BatchSize:    cfg.RelayBatchSize,
		Stream:       cfg.Exchange,
	}, log)

	log.Info().Msg("outbox relay starting")
	if err := r.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("outbox relay exited with error")
	}
}
