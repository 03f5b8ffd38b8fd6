// Package postgres implements the ledger store with hand-written, typed
// pgx/v5 access: no ORM, no generated query layer, parameters bound
// positionally.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/gateway"
)

// pgErrCode for unique_violation / check_violation, used to map raw store
// errors onto the engine's closed error taxonomy at this boundary. Raw pgx
// errors never cross out of this package.
const (
	pgErrUniqueViolation = "23505"
	pgErrCheckViolation  = "23514"
)

// Store implements gateway.Store over a pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool as a gateway.Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func txOf(tx gateway.Tx) (pgx.Tx, error) {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return nil, domain.Wrap(fmt.Errorf("postgres: unexpected tx type %T", tx), "transaction handle mismatch")
	}
	return pgTx, nil
}

// WithinTx opens a read-committed transaction, hands the engine a scoped
// handle, and commits on nil return or rolls back otherwise. The deferred
// rollback guarantees cleanup on every exit path, including panics
// propagating past fn.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx gateway.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// LockWallets acquires SELECT ... FOR UPDATE on the given wallet ids, in
// ascending order. Callers must pre-sort ids before calling, so that the
// lock order is total across every caller.
func (s *Store) LockWallets(ctx context.Context, tx gateway.Tx, ids []string) ([]*domain.Wallet, error) {
	pgTx, err := txOf(tx)
	if err != nil {
		return nil, err
	}

	rows, err := pgTx.Query(ctx, `
		SELECT id, user_id, balance, currency, status, created_at, updated_at, version
		FROM wallets
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, domain.Wrap(err, "failed to lock wallets")
	}
	defer rows.Close()

	byID := make(map[string]*domain.Wallet, len(ids))
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, domain.Wrap(err, "failed to scan wallet row")
		}
		byID[w.ID] = w
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(err, "failed to lock wallets")
	}

	out := make([]*domain.Wallet, len(ids))
	for i, id := range ids {
		w, ok := byID[id]
		if !ok {
			return nil, domain.NotFound(id)
		}
		out[i] = w
	}
	return out, nil
}

// GetWallet reads a wallet without locking it.
func (s *Store) GetWallet(ctx context.Context, id string) (*domain.Wallet, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, balance, currency, status, created_at, updated_at, version
		FROM wallets WHERE id = $1`, id)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(id)
		}
		return nil, domain.Wrap(err, "failed to get wallet")
	}
	return w, nil
}

// CreateWallet inserts a new active, zero-balance wallet for (userID,
// currency).
func (s *Store) CreateWallet(ctx context.Context, tx gateway.Tx, userID string, currency domain.Currency) (*domain.Wallet, error) {
	pgTx, err := txOf(tx)
	if err != nil {
		return nil, err
	}

	row := pgTx.QueryRow(ctx, `
		INSERT INTO wallets (user_id, balance, currency, status)
		VALUES ($1, 0, $2, 'active')
		RETURNING id, user_id, balance, currency, status, created_at, updated_at, version`,
		userID, string(currency))
	w, err := scanWallet(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewError(domain.KindConflict, "wallet already exists for (user, currency)").
				WithDetail("user_id", userID).WithDetail("currency", string(currency))
		}
		return nil, domain.Wrap(err, "failed to create wallet")
	}
	return w, nil
}

// UpdateWalletBalance persists wallet's new balance inside tx.
func (s *Store) UpdateWalletBalance(ctx context.Context, tx gateway.Tx, walletID string, newBalance domain.Money) error {
	pgTx, err := txOf(tx)
	if err != nil {
		return err
	}
	tag, err := pgTx.Exec(ctx, `
		UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2`,
		int64(newBalance), walletID)
	if err != nil {
		if isCheckViolation(err) {
			return domain.NewError(domain.KindInsufficientFunds, "balance would go negative").WithDetail("wallet_id", walletID)
		}
		return domain.Wrap(err, "failed to update wallet balance")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(walletID)
	}
	return nil
}

// AppendJournal inserts entry inside tx, assigning its ID and CreatedAt.
func (s *Store) AppendJournal(ctx context.Context, tx gateway.Tx, entry *domain.JournalEntry) error {
	pgTx, err := txOf(tx)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return domain.Wrap(err, "failed to encode journal metadata")
	}

	row := pgTx.QueryRow(ctx, `
		INSERT INTO journal_entries
			(wallet_id, related_wallet_id, type, amount, currency, balance_before, balance_after, status, idempotency_key, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		entry.WalletID, entry.RelatedWalletID, string(entry.Type), int64(entry.Amount), string(entry.Currency),
		int64(entry.BalanceBefore), int64(entry.BalanceAfter), string(entry.Status), entry.IdempotencyKey, meta)

	var createdAt time.Time
	if err := row.Scan(&entry.ID, &createdAt); err != nil {
		if isUniqueViolation(err) {
			return domain.NewError(domain.KindConflict, "idempotency key already used").
				WithDetail("idempotency_key", derefString(entry.IdempotencyKey))
		}
		if isCheckViolation(err) {
			return domain.NewError(domain.KindValidation, "journal entry violates a structural invariant")
		}
		return domain.Wrap(err, "failed to append journal entry")
	}
	entry.CreatedAt = createdAt
	return nil
}

// AppendOutbox inserts entry inside tx, assigning its ID and CreatedAt.
func (s *Store) AppendOutbox(ctx context.Context, tx gateway.Tx, entry *domain.OutboxEntry) error {
	pgTx, err := txOf(tx)
	if err != nil {
		return err
	}
	row := pgTx.QueryRow(ctx, `
		INSERT INTO outbox_entries (event_type, aggregate_id, payload, published)
		VALUES ($1, $2, $3, false)
		RETURNING id, created_at`,
		string(entry.EventType), entry.AggregateID, entry.Payload)

	var createdAt time.Time
	if err := row.Scan(&entry.ID, &createdAt); err != nil {
		return domain.Wrap(err, "failed to append outbox entry")
	}
	entry.CreatedAt = createdAt
	return nil
}

// JournalByIdempotencyKey looks up a prior journal entry by token, outside
// of any engine transaction.
func (s *Store) JournalByIdempotencyKey(ctx context.Context, key string) (*domain.JournalEntry, error) {
	row := s.pool.QueryRow(ctx, journalSelectColumns+` FROM journal_entries WHERE idempotency_key = $1`, key)
	entry, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Wrap(err, "failed to look up journal entry by idempotency key")
	}
	return entry, nil
}

// JournalByTransferID returns both legs of a transfer (debit first), looked
// up by the transfer_id carried in their metadata rather than
// related_wallet_id, so a replay of the debit leg's idempotency key can
// recover its credit counterpart.
func (s *Store) JournalByTransferID(ctx context.Context, transferID string) ([]*domain.JournalEntry, error) {
	rows, err := s.pool.Query(ctx, journalSelectColumns+`
		FROM journal_entries WHERE metadata->>'transfer_id' = $1
		ORDER BY CASE type WHEN 'transfer_debit' THEN 0 ELSE 1 END, created_at ASC`, transferID)
	if err != nil {
		return nil, domain.Wrap(err, "failed to look up transfer legs")
	}
	defer rows.Close()

	var out []*domain.JournalEntry
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, domain.Wrap(err, "failed to scan journal row")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListJournal returns a filtered, paginated page of walletID's journal
// entries, most recent first, plus the total matching row count.
func (s *Store) ListJournal(ctx context.Context, walletID string, filter gateway.JournalFilter) ([]*domain.JournalEntry, int, error) {
	where := "WHERE wallet_id = $1"
	args := []any{walletID}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.CreatedBefore.IsZero() {
		args = append(args, filter.CreatedBefore)
		where += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM journal_entries "+where, args...).Scan(&total); err != nil {
		return nil, 0, domain.Wrap(err, "failed to count journal entries")
	}

	pageArgs := append(append([]any{}, args...), filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := journalSelectColumns + " FROM journal_entries " + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	rows, err := s.pool.Query(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, domain.Wrap(err, "failed to list journal entries")
	}
	defer rows.Close()

	var out []*domain.JournalEntry
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, 0, domain.Wrap(err, "failed to scan journal row")
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// PullUnpublishedOutbox returns up to limit unpublished outbox rows in
// creation order.
func (s *Store) PullUnpublishedOutbox(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, aggregate_id, payload, published, published_at, created_at
		FROM outbox_entries
		WHERE published = false
		ORDER BY created_at ASC, id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, domain.Wrap(err, "failed to pull unpublished outbox rows")
	}
	defer rows.Close()

	var out []*domain.OutboxEntry
	for rows.Next() {
		var e domain.OutboxEntry
		if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateID, &e.Payload, &e.Published, &e.PublishedAt, &e.CreatedAt); err != nil {
			return nil, domain.Wrap(err, "failed to scan outbox row")
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MarkOutboxPublished flips published=true for ids in one bulk update.
func (s *Store) MarkOutboxPublished(ctx context.Context, ids []int64, publishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_entries SET published = true, published_at = $1
		WHERE id = ANY($2) AND published = false`, publishedAt, ids)
	if err != nil {
		return domain.Wrap(err, "failed to mark outbox rows published")
	}
	return nil
}

const journalSelectColumns = `
	SELECT id, wallet_id, related_wallet_id, type, amount, currency, balance_before, balance_after, status, idempotency_key, metadata, created_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanWallet(row scannable) (*domain.Wallet, error) {
	var w domain.Wallet
	var currency, status string
	var balanceTicks int64
	if err := row.Scan(&w.ID, &w.UserID, &balanceTicks, &currency, &status, &w.CreatedAt, &w.UpdatedAt, &w.Version); err != nil {
		return nil, err
	}
	w.Balance = domain.Money(balanceTicks)
	w.Currency = domain.Currency(currency)
	w.Status = domain.WalletStatus(status)
	return &w, nil
}

func scanJournal(row scannable) (*domain.JournalEntry, error) {
	var e domain.JournalEntry
	var jType, currency, status string
	var amountTicks, beforeTicks, afterTicks int64
	var metaBytes []byte
	if err := row.Scan(&e.ID, &e.WalletID, &e.RelatedWalletID, &jType, &amountTicks, &currency, &beforeTicks, &afterTicks, &status, &e.IdempotencyKey, &metaBytes, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Type = domain.JournalType(jType)
	e.Currency = domain.Currency(currency)
	e.Amount = domain.Money(amountTicks)
	e.BalanceBefore = domain.Money(beforeTicks)
	e.BalanceAfter = domain.Money(afterTicks)
	e.Status = domain.JournalStatus(status)
	if len(metaBytes) > 0 {
		if err := json.Unmarshal(metaBytes, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode journal metadata: %w", err)
		}
	}
	return &e, nil
}

func isUniqueViolation(err error) bool { return pgErrCodeIs(err, pgErrUniqueViolation) }
func isCheckViolation(err error) bool  { return pgErrCodeIs(err, pgErrCheckViolation) }

func pgErrCodeIs(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
