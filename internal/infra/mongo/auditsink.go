// Package mongo persists published wallet events into an audit collection.
// The insert is an upsert keyed on the event's own identifying fields, so a
// redelivered event from the at-least-once event stream lands once rather
// than duplicating a row.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Event is the audit document shape, covering the union of fields across
// the wallet.created / funds.* / funds.transfer.* payloads (internal/engine
// events.go). Fields irrelevant to a given event_type are left zero.
type Event struct {
	EventType           string    `json:"event_type" bson:"event_type"`
	Timestamp           string    `json:"timestamp" bson:"timestamp"`
	CorrelationID       string    `json:"correlation_id" bson:"correlation_id"`
	WalletID            string    `json:"wallet_id" bson:"wallet_id,omitempty"`
	SourceWalletID      string    `json:"source_wallet_id" bson:"source_wallet_id,omitempty"`
	DestinationWalletID string    `json:"destination_wallet_id" bson:"destination_wallet_id,omitempty"`
	TransferID          string    `json:"transfer_id" bson:"transfer_id,omitempty"`
	TransactionID       string    `json:"transaction_id" bson:"transaction_id,omitempty"`
	UserID              string    `json:"user_id" bson:"user_id,omitempty"`
	Amount              string    `json:"amount" bson:"amount,omitempty"`
	Currency            string    `json:"currency" bson:"currency,omitempty"`
	PreviousBalance     string    `json:"previous_balance" bson:"previous_balance,omitempty"`
	NewBalance          string    `json:"new_balance" bson:"new_balance,omitempty"`
	InitialBalance      string    `json:"initial_balance" bson:"initial_balance,omitempty"`
	ProcessedAt         time.Time `bson:"processed_at"`
}

// dedupKey identifies an event uniquely for upsert purposes: the event type
// plus the leg's own transaction id, or the event type plus the wallet id
// for wallet.created, which has no transaction_id.
func (e Event) dedupKey() bson.M {
	if e.TransactionID != "" {
		return bson.M{"event_type": e.EventType, "transaction_id": e.TransactionID}
	}
	return bson.M{"event_type": e.EventType, "wallet_id": e.WalletID}
}

// AuditSink writes Events into a Mongo collection, deduplicating retried
// deliveries.
type AuditSink struct {
	collection *mongo.Collection
}

// NewAuditSink returns an AuditSink backed by dbName.audit_events on
// client. EnsureIndexes should be called once at startup.
func NewAuditSink(client *mongo.Client, dbName string) *AuditSink {
	return &AuditSink{collection: client.Database(dbName).Collection("audit_events")}
}

// EnsureIndexes creates the unique index that makes Save's upsert a
// dedup boundary rather than just an optimization.
func (s *AuditSink) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_type", Value: 1}, {Key: "transaction_id", Value: 1}, {Key: "wallet_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: failed to create audit dedup index: %w", err)
	}
	return nil
}

// Save upserts evt, so a redelivered event overwrites its own prior copy
// instead of appearing twice.
func (s *AuditSink) Save(ctx context.Context, evt Event) error {
	evt.ProcessedAt = time.Now()
	_, err := s.collection.UpdateOne(ctx, evt.dedupKey(),
		bson.M{"$set": evt},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo: failed to upsert audit event: %w", err)
	}
	return nil
}
