// Package engine implements the money engine: deposit, withdraw, transfer,
// and the read path. It depends only on gateway interfaces, never a
// concrete store, so it can be tested against an in-memory fake.
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/gateway"
)

// Limits holds the per-currency bounds the engine enforces: the maximum
// amount any single movement may carry, and the maximum balance a wallet
// may hold after one. A currency with no entry is unbounded.
type Limits struct {
	MaxTransactionAmount map[domain.Currency]domain.Money
	MaxWalletBalance      map[domain.Currency]domain.Money
}

func (l Limits) maxAmount(c domain.Currency) (domain.Money, bool) {
	m, ok := l.MaxTransactionAmount[c]
	return m, ok
}

func (l Limits) maxBalance(c domain.Currency) (domain.Money, bool) {
	m, ok := l.MaxWalletBalance[c]
	return m, ok
}

// Engine is the money engine. It is safe for concurrent use by any number
// of callers; all serialization happens via Store's row locks.
type Engine struct {
	store  gateway.Store
	limits Limits
	now    func() time.Time
}

// New constructs an Engine over store with the given limits.
func New(store gateway.Store, limits Limits) *Engine {
	return &Engine{store: store, limits: limits, now: time.Now}
}

// DepositInput is the input to Deposit.
type DepositInput struct {
	WalletID       string
	Amount         string // decimal string, parsed per domain.ParseMoney
	CallerUserID   string
	IdempotencyKey *string
	CorrelationID  string
	Metadata       map[string]string
}

// WithdrawInput is the input to Withdraw.
type WithdrawInput = DepositInput

// Deposit credits WalletID by Amount, appending a deposit journal entry and
// a funds.deposited outbox entry.
func (e *Engine) Deposit(ctx context.Context, in DepositInput) (*domain.JournalEntry, error) {
	return e.singleWalletMutation(ctx, in, domain.JournalDeposit, domain.EventFundsDeposited)
}

// Withdraw debits WalletID by Amount, failing with insufficient_funds if the
// balance would go negative.
func (e *Engine) Withdraw(ctx context.Context, in WithdrawInput) (*domain.JournalEntry, error) {
	return e.singleWalletMutation(ctx, in, domain.JournalWithdrawal, domain.EventFundsWithdrawn)
}

func (e *Engine) singleWalletMutation(ctx context.Context, in DepositInput, jType domain.JournalType, evt domain.EventKind) (*domain.JournalEntry, error) {
	// 1. Idempotency fast path.
	if in.IdempotencyKey != nil {
		if prior, err := e.store.JournalByIdempotencyKey(ctx, *in.IdempotencyKey); err != nil {
			return nil, domain.Wrap(err, "idempotency lookup failed")
		} else if prior != nil {
			return prior, nil
		}
	}

	// 2. Syntactic validation.
	amount, err := domain.ParseMoney(in.Amount)
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, err.Error())
	}
	if !amount.IsPositive() {
		return nil, domain.NewError(domain.KindValidation, "amount must be strictly positive")
	}
	if in.WalletID == "" {
		return nil, domain.NewError(domain.KindValidation, "wallet id is required")
	}

	var result *domain.JournalEntry
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx gateway.Tx) error {
		// 4. Acquire lock.
		wallets, err := e.store.LockWallets(ctx, tx, []string{in.WalletID})
		if err != nil {
			return err
		}
		wallet := wallets[0]

		// 5. Semantic validation.
		if !wallet.IsOwnedBy(in.CallerUserID) {
			return domain.Forbidden(wallet.ID, in.CallerUserID)
		}
		if err := wallet.EnsureActive(); err != nil {
			return err
		}
		if limit, ok := e.limits.maxAmount(wallet.Currency); ok && amount > limit {
			return domain.AmountExceedsLimit(amount, limit)
		}

		balanceBefore := wallet.Balance
		var balanceAfter domain.Money
		if jType.Sign() < 0 {
			if amount > balanceBefore {
				return domain.InsufficientFunds(amount, balanceBefore)
			}
			balanceAfter = wallet.DebitedBalance(amount)
		} else {
			balanceAfter = wallet.CreditedBalance(amount)
			if limit, ok := e.limits.maxBalance(wallet.Currency); ok && balanceAfter > limit {
				return domain.BalanceExceedsLimit(balanceAfter, limit)
			}
		}

		// 6. Apply delta.
		if err := e.store.UpdateWalletBalance(ctx, tx, wallet.ID, balanceAfter); err != nil {
			return err
		}

		// 7. Append journal entry.
		entry := &domain.JournalEntry{
			WalletID:       wallet.ID,
			Type:           jType,
			Amount:         amount,
			Currency:       wallet.Currency,
			BalanceBefore:  balanceBefore,
			BalanceAfter:   balanceAfter,
			Status:         domain.JournalCompleted,
			IdempotencyKey: in.IdempotencyKey,
			Metadata:       in.Metadata,
		}
		if err := e.store.AppendJournal(ctx, tx, entry); err != nil {
			return err
		}

		// 8. Append outbox entry.
		payload, err := buildFundsEventPayload(evt, wallet.ID, entry.ID, amount, wallet.Currency, balanceBefore, balanceAfter, in.CorrelationID, in.Metadata, e.now())
		if err != nil {
			return domain.Wrap(err, "failed to encode event payload")
		}
		if err := e.store.AppendOutbox(ctx, tx, &domain.OutboxEntry{
			EventType:   evt,
			AggregateID: entry.ID,
			Payload:     payload,
		}); err != nil {
			return err
		}

		result = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransferInput is the input to Transfer.
type TransferInput struct {
	SourceWalletID      string
	DestinationWalletID string
	Amount              string
	CallerUserID        string
	IdempotencyKey      *string
	CorrelationID       string
	Metadata            map[string]string
}

// TransferResult carries both legs of a completed transfer.
type TransferResult struct {
	Debit      *domain.JournalEntry
	Credit     *domain.JournalEntry
	TransferID string
}

// Transfer moves Amount from SourceWalletID to DestinationWalletID
// atomically, producing two journal entries and two outbox entries sharing
// one transfer_id.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	// 1. Idempotency fast path: look up the debit leg, then recover its
	// counterpart via transfer_id. A replayed call only ever carries the
	// debit leg's idempotency token, so the credit leg has to be found
	// through the shared transfer_id instead of its own token.
	if in.IdempotencyKey != nil {
		prior, err := e.store.JournalByIdempotencyKey(ctx, *in.IdempotencyKey)
		if err != nil {
			return nil, domain.Wrap(err, "idempotency lookup failed")
		}
		if prior != nil {
			legs, err := e.store.JournalByTransferID(ctx, prior.TransferID())
			if err != nil {
				return nil, domain.Wrap(err, "failed to load transfer legs")
			}
			res := &TransferResult{TransferID: prior.TransferID()}
			for _, leg := range legs {
				switch leg.Type {
				case domain.JournalTransferDebit:
					res.Debit = leg
				case domain.JournalTransferCredit:
					res.Credit = leg
				}
			}
			return res, nil
		}
	}

	// Early invariant: source != destination.
	if in.SourceWalletID == in.DestinationWalletID {
		return nil, domain.NewError(domain.KindInvalidTransfer, "source and destination wallets must differ").
			WithDetail("wallet_id", in.SourceWalletID)
	}

	// 2. Syntactic validation.
	amount, err := domain.ParseMoney(in.Amount)
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, err.Error())
	}
	if !amount.IsPositive() {
		return nil, domain.NewError(domain.KindValidation, "amount must be strictly positive")
	}

	// 4. Acquire locks in ascending wallet-id order: a total, deterministic
	// lock order across all callers is what makes concurrent transfers
	// between overlapping wallet pairs deadlock-free.
	ids := []string{in.SourceWalletID, in.DestinationWalletID}
	sort.Strings(ids)

	var result *TransferResult
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx gateway.Tx) error {
		wallets, err := e.store.LockWallets(ctx, tx, ids)
		if err != nil {
			return err
		}
		byID := make(map[string]*domain.Wallet, 2)
		for _, w := range wallets {
			byID[w.ID] = w
		}
		source := byID[in.SourceWalletID]
		destination := byID[in.DestinationWalletID]

		// 5. Semantic validation.
		if !source.IsOwnedBy(in.CallerUserID) {
			return domain.Forbidden(source.ID, in.CallerUserID)
		}
		if err := source.EnsureActive(); err != nil {
			return err
		}
		if err := destination.EnsureActive(); err != nil {
			return err
		}
		if source.Currency != destination.Currency {
			return domain.NewError(domain.KindCurrencyMismatch, "source and destination wallets have different currencies").
				WithDetail("source_currency", string(source.Currency)).
				WithDetail("destination_currency", string(destination.Currency))
		}
		if limit, ok := e.limits.maxAmount(source.Currency); ok && amount > limit {
			return domain.AmountExceedsLimit(amount, limit)
		}
		if amount > source.Balance {
			return domain.InsufficientFunds(amount, source.Balance)
		}

		sourceBefore := source.Balance
		sourceAfter := source.DebitedBalance(amount)
		destBefore := destination.Balance
		destAfter := destination.CreditedBalance(amount)
		if limit, ok := e.limits.maxBalance(destination.Currency); ok && destAfter > limit {
			return domain.BalanceExceedsLimit(destAfter, limit)
		}

		// 6. Apply deltas.
		if err := e.store.UpdateWalletBalance(ctx, tx, source.ID, sourceAfter); err != nil {
			return err
		}
		if err := e.store.UpdateWalletBalance(ctx, tx, destination.ID, destAfter); err != nil {
			return err
		}

		// 7. Append journal entries sharing one transfer_id; idempotency
		// token attaches only to the debit leg.
		transferID := domain.NewTransferID()
		meta := mergeMetadata(in.Metadata, transferID)

		debit := &domain.JournalEntry{
			WalletID:        source.ID,
			RelatedWalletID: &destination.ID,
			Type:            domain.JournalTransferDebit,
			Amount:          amount,
			Currency:        source.Currency,
			BalanceBefore:   sourceBefore,
			BalanceAfter:    sourceAfter,
			Status:          domain.JournalCompleted,
			IdempotencyKey:  in.IdempotencyKey,
			Metadata:        meta,
		}
		if err := e.store.AppendJournal(ctx, tx, debit); err != nil {
			return err
		}

		credit := &domain.JournalEntry{
			WalletID:        destination.ID,
			RelatedWalletID: &source.ID,
			Type:            domain.JournalTransferCredit,
			Amount:          amount,
			Currency:        destination.Currency,
			BalanceBefore:   destBefore,
			BalanceAfter:    destAfter,
			Status:          domain.JournalCompleted,
			Metadata:        meta,
		}
		if err := e.store.AppendJournal(ctx, tx, credit); err != nil {
			return err
		}

		// 8. Append outbox entries, aggregate id = transfer_id.
		now := e.now()
		debitPayload, err := buildTransferEventPayload(domain.EventTransferDebited, source.ID, destination.ID, transferID, debit.ID, amount, source.Currency, sourceBefore, sourceAfter, in.CorrelationID, in.Metadata, now)
		if err != nil {
			return domain.Wrap(err, "failed to encode event payload")
		}
		if err := e.store.AppendOutbox(ctx, tx, &domain.OutboxEntry{
			EventType:   domain.EventTransferDebited,
			AggregateID: transferID,
			Payload:     debitPayload,
		}); err != nil {
			return err
		}

		creditPayload, err := buildTransferEventPayload(domain.EventTransferCredited, source.ID, destination.ID, transferID, credit.ID, amount, destination.Currency, destBefore, destAfter, in.CorrelationID, in.Metadata, now)
		if err != nil {
			return domain.Wrap(err, "failed to encode event payload")
		}
		if err := e.store.AppendOutbox(ctx, tx, &domain.OutboxEntry{
			EventType:   domain.EventTransferCredited,
			AggregateID: transferID,
			Payload:     creditPayload,
		}); err != nil {
			return err
		}

		result = &TransferResult{Debit: debit, Credit: credit, TransferID: transferID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func mergeMetadata(meta map[string]string, transferID string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["transfer_id"] = transferID
	return out
}

// GetBalance returns walletID's current balance for a caller who owns it.
func (e *Engine) GetBalance(ctx context.Context, walletID, callerUserID string) (*domain.Wallet, time.Time, error) {
	wallet, err := e.store.GetWallet(ctx, walletID)
	if err != nil {
		return nil, time.Time{}, err
	}
	if !wallet.IsOwnedBy(callerUserID) {
		return nil, time.Time{}, domain.Forbidden(wallet.ID, callerUserID)
	}
	return wallet, e.now(), nil
}

// ListJournal returns a paginated, filtered journal history for walletID.
func (e *Engine) ListJournal(ctx context.Context, walletID, callerUserID string, filter gateway.JournalFilter) ([]*domain.JournalEntry, int, error) {
	wallet, err := e.store.GetWallet(ctx, walletID)
	if err != nil {
		return nil, 0, err
	}
	if !wallet.IsOwnedBy(callerUserID) {
		return nil, 0, domain.Forbidden(wallet.ID, callerUserID)
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		return nil, 0, domain.NewError(domain.KindValidation, "page size must be between 1 and 100")
	}
	if filter.Page <= 0 {
		return nil, 0, domain.NewError(domain.KindValidation, "page must be >= 1")
	}
	return e.store.ListJournal(ctx, walletID, filter)
}

// CreateWallet opens a new active, zero-balance wallet for (userID,
// currency), emitting a wallet.created outbox entry.
func (e *Engine) CreateWallet(ctx context.Context, userID string, currency domain.Currency, correlationID string) (*domain.Wallet, error) {
	if !domain.ValidCurrency(currency) {
		return nil, domain.NewError(domain.KindValidation, "unsupported currency").WithDetail("currency", string(currency))
	}
	var wallet *domain.Wallet
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx gateway.Tx) error {
		w, err := e.store.CreateWallet(ctx, tx, userID, currency)
		if err != nil {
			return err
		}
		payload, err := buildWalletCreatedPayload(w, correlationID, e.now())
		if err != nil {
			return domain.Wrap(err, "failed to encode event payload")
		}
		if err := e.store.AppendOutbox(ctx, tx, &domain.OutboxEntry{
			EventType:   domain.EventWalletCreated,
			AggregateID: w.ID,
			Payload:     payload,
		}); err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}
