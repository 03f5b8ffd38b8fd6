// Package gateway declares the ports the money engine, outbox relay, and
// rate limiter depend on. Concrete adapters live under internal/infra.
package gateway

import (
	"context"
	"time"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
)

// Tx is an opaque handle for a single logical database transaction, scoped
// to one call to Store.WithinTx. Adapters type-assert it back to their own
// concrete transaction type; the engine never inspects it.
type Tx interface{}

// Store is the ledger store's contract to the money engine.
type Store interface {
	// WithinTx opens a transaction, invokes fn with a handle bound to it,
	// and commits on nil return or rolls back otherwise. Nested calls are
	// not supported; the engine never calls WithinTx from inside fn.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// LockWallets acquires a write lock on the given wallet ids within tx,
	// in exactly the order given by ids. Callers must pre-sort ids
	// ascending before calling this for multi-wallet operations, rendering
	// the global lock order total and deadlock-free. Returns one wallet per
	// id, in the same order, or a not_found error if any id is missing.
	LockWallets(ctx context.Context, tx Tx, ids []string) ([]*domain.Wallet, error)

	// GetWallet reads a wallet without locking it.
	GetWallet(ctx context.Context, id string) (*domain.Wallet, error)

	// CreateWallet inserts a new active wallet for (userID, currency) with
	// zero balance, failing with a conflict error if one already exists.
	CreateWallet(ctx context.Context, tx Tx, userID string, currency domain.Currency) (*domain.Wallet, error)

	// UpdateWalletBalance persists wallet's new balance and updated_at
	// inside tx. The caller has already locked the row via LockWallets.
	UpdateWalletBalance(ctx context.Context, tx Tx, walletID string, newBalance domain.Money) error

	// AppendJournal inserts a journal entry inside tx, assigning its ID and
	// CreatedAt.
	AppendJournal(ctx context.Context, tx Tx, entry *domain.JournalEntry) error

	// AppendOutbox inserts an outbox entry inside tx, assigning its ID and
	// CreatedAt.
	AppendOutbox(ctx context.Context, tx Tx, entry *domain.OutboxEntry) error

	// JournalByIdempotencyKey looks up a previously committed journal entry
	// by its idempotency token, outside of any engine transaction. Returns
	// nil, nil on a miss.
	JournalByIdempotencyKey(ctx context.Context, key string) (*domain.JournalEntry, error)

	// JournalByTransferID returns both legs of a transfer (debit first),
	// looked up by the transfer_id carried in their metadata.
	JournalByTransferID(ctx context.Context, transferID string) ([]*domain.JournalEntry, error)

	// ListJournal returns a page of journal entries for walletID, most
	// recent first, plus the total matching row count.
	ListJournal(ctx context.Context, walletID string, filter JournalFilter) ([]*domain.JournalEntry, int, error)

	// PullUnpublishedOutbox returns up to limit unpublished outbox rows in
	// creation order.
	PullUnpublishedOutbox(ctx context.Context, limit int) ([]*domain.OutboxEntry, error)

	// MarkOutboxPublished flips published=true and sets published_at for
	// the given outbox row ids in one bulk update.
	MarkOutboxPublished(ctx context.Context, ids []int64, publishedAt time.Time) error
}

// JournalFilter narrows a ListJournal call.
type JournalFilter struct {
	Type      domain.JournalType // zero value means unfiltered
	CreatedAfter  time.Time      // zero value means unbounded
	CreatedBefore time.Time      // zero value means unbounded
	Page     int // 1-indexed
	PageSize int // <= 100
}
