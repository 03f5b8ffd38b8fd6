package domain

import "time"

// EventKind names the downstream events the outbox can carry.
type EventKind string

const (
	EventWalletCreated       EventKind = "wallet.created"
	EventFundsDeposited      EventKind = "funds.deposited"
	EventFundsWithdrawn      EventKind = "funds.withdrawn"
	EventTransferDebited     EventKind = "funds.transfer.debited"
	EventTransferCredited    EventKind = "funds.transfer.credited"
)

// OutboxEntry is a pending event co-written with its journal entry in the
// same database transaction. It transitions at-most-once from
// Published=false to Published=true and is never deleted.
type OutboxEntry struct {
	ID          int64
	EventType   EventKind
	AggregateID string
	Payload     []byte
	Published   bool
	PublishedAt *time.Time
	CreatedAt   time.Time
}
