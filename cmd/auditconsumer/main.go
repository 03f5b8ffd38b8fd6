// Command auditconsumer drains published wallet events from the exchange
// the outbox relay publishes to and persists them into Mongo for audit
// read access, independent of the transactional core.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/config"
	mongoinfra "github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/mongo"
)

const queueName = "wallet_audit_queue"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("service", "auditconsumer").Logger()

	cfg := config.Load()
	ctx := context.Background()

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI()))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mongo client")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to disconnect mongo client")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal().Err(err).Msg("mongo is not responding")
	}
	log.Info().Msg("connected to mongo")

	sink := mongoinfra.NewAuditSink(mongoClient, cfg.MongoDB)
	if err := sink.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure audit indexes")
	}

	conn, err := amqp.DialConfig(cfg.RabbitURL(), amqp.Config{
		Properties: amqp.Table{"connection_name": "wallet-audit-consumer"},
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

	if err := ch.Qos(1, 0, false); err != nil {
		log.Fatal().Err(err).Msg("failed to set channel QoS")
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		log.Fatal().Err(err).Msg("failed to declare exchange")
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare queue")
	}

	// Bind every wallet.* and funds.# event this service knows how to audit;
	// funds.# also matches the three-word funds.transfer.* routing keys.
	for _, pattern := range []string{"wallet.*", "funds.#"} {
		if err := ch.QueueBind(q.Name, pattern, cfg.Exchange, false, nil); err != nil {
			log.Fatal().Err(err).Msg("failed to bind queue")
		}
	}

	deliveries, err := ch.Consume(q.Name, "wallet-audit-consumer", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register consumer")
	}

	notifyClose := make(chan *amqp.Error, 1)
	ch.NotifyClose(notifyClose)

	log.Info().Str("queue", q.Name).Msg("audit consumer started")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case err, ok := <-notifyClose:
				if ok && err != nil {
					log.Error().Err(err).Msg("rabbitmq channel closed")
				}
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				handleDelivery(ctx, log, sink, d)
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
		log.Info().Msg("shutting down audit consumer")
	case <-done:
		log.Warn().Msg("audit consumer delivery channel closed unexpectedly")
	}
}

func handleDelivery(ctx context.Context, log zerolog.Logger, sink *mongoinfra.AuditSink, d amqp.Delivery) {
	var evt mongoinfra.Event
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		log.Error().Err(err).Msg("failed to decode event, discarding")
		_ = d.Nack(false, false)
		return
	}

	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sink.Save(saveCtx, evt); err != nil {
		log.Error().Err(err).Str("event_type", evt.EventType).Msg("failed to persist audit event, requeueing")
		_ = d.Nack(false, true)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Msg("failed to ack delivery")
		return
	}
	log.Info().Str("event_type", evt.EventType).Str("routing_key", d.RoutingKey).Msg("audited event")
}
