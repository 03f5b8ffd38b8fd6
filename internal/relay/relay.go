// Package relay implements the transactional outbox relay: a single
// long-lived background worker that drains committed-but-unpublished
// outbox rows into the event log with at-least-once delivery.
package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/gateway"
)

// Config tunes the relay's polling cadence and batch size.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	Stream       string
}

// outboxStore is the narrow slice of gateway.Store the relay actually
// drives; gateway.Store satisfies it, and tests can supply a smaller fake.
type outboxStore interface {
	PullUnpublishedOutbox(ctx context.Context, limit int) ([]*domain.OutboxEntry, error)
	MarkOutboxPublished(ctx context.Context, ids []int64, publishedAt time.Time) error
}

// Relay drains an outboxStore's outbox into a gateway.EventLog.
type Relay struct {
	store    outboxStore
	eventLog gateway.EventLog
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

// New constructs a Relay. cfg.PollInterval and cfg.BatchSize fall back to
// sane defaults if zero.
func New(store outboxStore, eventLog gateway.EventLog, cfg Config, log zerolog.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Stream == "" {
		cfg.Stream = "wallet.events"
	}
	return &Relay{store: store, eventLog: eventLog, cfg: cfg, log: log, now: time.Now}
}

// Run polls on cfg.PollInterval until ctx is cancelled. On shutdown it
// finishes the in-flight batch before returning.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("outbox relay shutting down")
			return nil
		case <-ticker.C:
			// The batch runs detached from ctx's cancellation so a shutdown
			// arriving mid-batch does not abort its publishes or the final
			// mark-published update.
			if err := r.tick(context.WithoutCancel(ctx)); err != nil {
				r.log.Error().Err(err).Msg("outbox relay tick failed")
			}
		}
	}
}

// tick publishes one batch. A publish failure on one entry does not block
// the rest of the batch; failed entries are left unmodified for the next
// tick to retry.
func (r *Relay) tick(ctx context.Context) error {
	entries, err := r.store.PullUnpublishedOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		return domain.Wrap(err, "failed to pull unpublished outbox rows")
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]int64, 0, len(entries))
	for _, e := range entries {
		eventID, err := r.eventLog.Append(ctx, r.cfg.Stream, e.Payload)
		if err != nil {
			r.log.Error().Err(err).Int64("outbox_id", e.ID).Str("event_type", string(e.EventType)).
				Msg("failed to publish outbox entry, will retry next tick")
			continue
		}
		r.log.Info().Int64("outbox_id", e.ID).Str("event_type", string(e.EventType)).
			Str("event_log_id", eventID).Msg("published outbox entry")
		published = append(published, e.ID)
	}

	if len(published) == 0 {
		return nil
	}
	if err := r.store.MarkOutboxPublished(ctx, published, r.now()); err != nil {
		return domain.Wrap(err, "failed to mark outbox rows published")
	}
	return nil
}
