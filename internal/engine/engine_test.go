package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/gateway"
)

func seedWallet(t *testing.T, s *memStore, userID string, currency domain.Currency, balance domain.Money) *domain.Wallet {
	t.Helper()
	w, err := s.CreateWallet(context.Background(), &memTx{}, userID, currency)
	require.NoError(t, err)
	s.mu.Lock()
	s.wallets[w.ID].Balance = balance
	s.mu.Unlock()
	w.Balance = balance
	return w
}

func newTestEngine() (*Engine, *memStore) {
	store := newMemStore()
	limits := Limits{
		MaxTransactionAmount: map[domain.Currency]domain.Money{domain.USD: mustMoney("100000.00")},
		MaxWalletBalance:     map[domain.Currency]domain.Money{domain.USD: mustMoney("1000000.00")},
	}
	return New(store, limits), store
}

func mustMoney(s string) domain.Money {
	m, err := domain.ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func TestDeposit_CreditsBalanceAndEmitsOutbox(t *testing.T) {
	eng, store := newTestEngine()
	w := seedWallet(t, store, "alice", domain.USD, mustMoney("0.00"))

	entry, err := eng.Deposit(context.Background(), DepositInput{
		WalletID:     w.ID,
		Amount:       "100.50",
		CallerUserID: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JournalDeposit, entry.Type)
	assert.Equal(t, mustMoney("100.50"), entry.BalanceAfter)

	got, _, err := eng.GetBalance(context.Background(), w.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, mustMoney("100.50"), got.Balance)

	require.Len(t, store.outbox, 1)
	assert.Equal(t, domain.EventFundsDeposited, store.outbox[0].EventType)
	assert.Equal(t, entry.ID, store.outbox[0].AggregateID)
}

func TestDeposit_IdempotentReplayReturnsSameEntry(t *testing.T) {
	eng, store := newTestEngine()
	w := seedWallet(t, store, "alice", domain.USD, mustMoney("0.00"))
	key := "k1"

	first, err := eng.Deposit(context.Background(), DepositInput{
		WalletID: w.ID, Amount: "100.50", CallerUserID: "alice", IdempotencyKey: &key,
	})
	require.NoError(t, err)

	second, err := eng.Deposit(context.Background(), DepositInput{
		WalletID: w.ID, Amount: "100.50", CallerUserID: "alice", IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	require.Len(t, store.journal, 1, "at most one journal entry ever committed for a given idempotency token")
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	eng, store := newTestEngine()
	w := seedWallet(t, store, "alice", domain.USD, mustMoney("125.00"))

	_, err := eng.Withdraw(context.Background(), WithdrawInput{
		WalletID: w.ID, Amount: "200.00", CallerUserID: "alice",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))

	got, _, err := eng.GetBalance(context.Background(), w.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, mustMoney("125.00"), got.Balance)
	assert.Empty(t, store.journal)
}

func TestTransfer_ConservesTotalAndSharesTransferID(t *testing.T) {
	eng, store := newTestEngine()
	w1 := seedWallet(t, store, "alice", domain.USD, mustMoney("100.00"))
	w2 := seedWallet(t, store, "bob", domain.USD, mustMoney("200.00"))

	res, err := eng.Transfer(context.Background(), TransferInput{
		SourceWalletID: w1.ID, DestinationWalletID: w2.ID, Amount: "30.00", CallerUserID: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, res.Debit.TransferID(), res.Credit.TransferID())
	assert.Equal(t, res.Debit.Amount, res.Credit.Amount)

	gotW1, _, err := eng.GetBalance(context.Background(), w1.ID, "alice")
	require.NoError(t, err)
	gotW2, _, err := eng.GetBalance(context.Background(), w2.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, mustMoney("70.00"), gotW1.Balance)
	assert.Equal(t, mustMoney("230.00"), gotW2.Balance)
	assert.Equal(t, mustMoney("300.00"), gotW1.Balance.Add(gotW2.Balance))

	require.Len(t, store.outbox, 2)
	assert.Equal(t, domain.EventTransferDebited, store.outbox[0].EventType)
	assert.Equal(t, domain.EventTransferCredited, store.outbox[1].EventType)
	assert.Equal(t, res.TransferID, store.outbox[0].AggregateID)
	assert.Equal(t, res.TransferID, store.outbox[1].AggregateID)
}

func TestTransfer_SelfTransferRejected(t *testing.T) {
	eng, store := newTestEngine()
	w := seedWallet(t, store, "alice", domain.USD, mustMoney("100.00"))

	_, err := eng.Transfer(context.Background(), TransferInput{
		SourceWalletID: w.ID, DestinationWalletID: w.ID, Amount: "10.00", CallerUserID: "alice",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidTransfer, domain.KindOf(err))
}

func TestTransfer_CurrencyMismatch(t *testing.T) {
	eng, store := newTestEngine()
	w1 := seedWallet(t, store, "alice", domain.USD, mustMoney("100.00"))
	w3 := seedWallet(t, store, "alice", domain.EUR, mustMoney("0.00"))

	_, err := eng.Transfer(context.Background(), TransferInput{
		SourceWalletID: w1.ID, DestinationWalletID: w3.ID, Amount: "10.00", CallerUserID: "alice",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindCurrencyMismatch, domain.KindOf(err))
}

func TestTransfer_ForbiddenWhenCallerDoesNotOwnSource(t *testing.T) {
	eng, store := newTestEngine()
	w1 := seedWallet(t, store, "alice", domain.USD, mustMoney("100.00"))
	w2 := seedWallet(t, store, "bob", domain.USD, mustMoney("0.00"))

	_, err := eng.Transfer(context.Background(), TransferInput{
		SourceWalletID: w1.ID, DestinationWalletID: w2.ID, Amount: "10.00", CallerUserID: "mallory",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestDeposit_RejectedOnUnownedOrFrozenWallet(t *testing.T) {
	eng, store := newTestEngine()
	w := seedWallet(t, store, "alice", domain.USD, mustMoney("0.00"))

	_, err := eng.Deposit(context.Background(), DepositInput{WalletID: w.ID, Amount: "1.00", CallerUserID: "mallory"})
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	store.mu.Lock()
	store.wallets[w.ID].Status = domain.WalletFrozen
	store.mu.Unlock()

	_, err = eng.Deposit(context.Background(), DepositInput{WalletID: w.ID, Amount: "1.00", CallerUserID: "alice"})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestListJournal_PaginatesAndFilters(t *testing.T) {
	eng, store := newTestEngine()
	w := seedWallet(t, store, "alice", domain.USD, mustMoney("0.00"))

	for i := 0; i < 5; i++ {
		_, err := eng.Deposit(context.Background(), DepositInput{WalletID: w.ID, Amount: "10.00", CallerUserID: "alice"})
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := eng.Withdraw(context.Background(), WithdrawInput{WalletID: w.ID, Amount: "1.00", CallerUserID: "alice"})
		require.NoError(t, err)
	}

	page, total, err := eng.ListJournal(context.Background(), w.ID, "alice", gateway.JournalFilter{
		Type: domain.JournalDeposit, Page: 1, PageSize: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 3)
	for _, e := range page {
		assert.Equal(t, domain.JournalDeposit, e.Type)
	}
}

func TestBalanceReconstruction(t *testing.T) {
	eng, store := newTestEngine()
	w := seedWallet(t, store, "alice", domain.USD, mustMoney("0.00"))
	other := seedWallet(t, store, "bob", domain.USD, mustMoney("1000.00"))

	_, err := eng.Deposit(context.Background(), DepositInput{WalletID: w.ID, Amount: "50.00", CallerUserID: "alice"})
	require.NoError(t, err)
	_, err = eng.Deposit(context.Background(), DepositInput{WalletID: w.ID, Amount: "25.00", CallerUserID: "alice"})
	require.NoError(t, err)
	_, err = eng.Withdraw(context.Background(), WithdrawInput{WalletID: w.ID, Amount: "10.00", CallerUserID: "alice"})
	require.NoError(t, err)
	_, err = eng.Transfer(context.Background(), TransferInput{SourceWalletID: other.ID, DestinationWalletID: w.ID, Amount: "5.00", CallerUserID: "bob"})
	require.NoError(t, err)

	entries, _, err := eng.ListJournal(context.Background(), w.ID, "alice", gateway.JournalFilter{Page: 1, PageSize: 100})
	require.NoError(t, err)

	// ListJournal returns descending order; fold ascending by creation time.
	ascending := make([]*domain.JournalEntry, len(entries))
	for i, e := range entries {
		ascending[len(entries)-1-i] = e
	}

	reconstructed := domain.ZeroMoney
	for _, e := range ascending {
		if e.Type.Sign() > 0 {
			reconstructed = reconstructed.Add(e.Amount)
		} else {
			reconstructed = reconstructed.Sub(e.Amount)
		}
	}

	got, _, err := eng.GetBalance(context.Background(), w.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, got.Balance, reconstructed)
}

func TestTransfer_ConcurrentCrissCrossNeverDeadlocks(t *testing.T) {
	eng, store := newTestEngine()
	w1 := seedWallet(t, store, "alice", domain.USD, mustMoney("1000.00"))
	w2 := seedWallet(t, store, "bob", domain.USD, mustMoney("1000.00"))

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = eng.Transfer(context.Background(), TransferInput{
				SourceWalletID: w1.ID, DestinationWalletID: w2.ID, Amount: "1.00", CallerUserID: "alice",
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = eng.Transfer(context.Background(), TransferInput{
				SourceWalletID: w2.ID, DestinationWalletID: w1.ID, Amount: "1.00", CallerUserID: "bob",
			})
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("transfer workload deadlocked")
	}

	gotW1, _, err := eng.GetBalance(context.Background(), w1.ID, "alice")
	require.NoError(t, err)
	gotW2, _, err := eng.GetBalance(context.Background(), w2.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, mustMoney("2000.00"), gotW1.Balance.Add(gotW2.Balance))
}

func TestCreateWallet_EmitsWalletCreatedEvent(t *testing.T) {
	eng, store := newTestEngine()
	w, err := eng.CreateWallet(context.Background(), "alice", domain.USD, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.WalletActive, w.Status)
	assert.Equal(t, domain.ZeroMoney, w.Balance)

	require.Len(t, store.outbox, 1)
	assert.Equal(t, domain.EventWalletCreated, store.outbox[0].EventType)
	assert.Equal(t, w.ID, store.outbox[0].AggregateID)

	_, err = eng.CreateWallet(context.Background(), "alice", domain.USD, "corr-2")
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestMoneyParsing(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"100.50", false},
		{"0", false},
		{"-5.25", false},
		{"1.23456", true},
		{"", true},
		{"abc", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			_, err := domain.ParseMoney(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMoneyFormatting(t *testing.T) {
	m := mustMoney("1234.5678")
	assert.Equal(t, "1234.5678", m.String())
	assert.Equal(t, "1234.56", m.StringAt2())
}
