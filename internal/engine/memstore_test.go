package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/gateway"
)

// memStore is a small hand-written fake implementing gateway.Store, used to
// exercise the engine without a real Postgres instance. It serializes
// access with one mutex per wallet id, modeling row-level locking closely
// enough to exercise lock-ordering and deadlock-freedom under concurrent
// transfers.
type memStore struct {
	mu       sync.Mutex
	wallets  map[string]*domain.Wallet
	journal  []*domain.JournalEntry
	outbox   []*domain.OutboxEntry
	byIdem   map[string]*domain.JournalEntry
	nextSeq  int64

	walletLocks map[string]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		wallets:     make(map[string]*domain.Wallet),
		byIdem:      make(map[string]*domain.JournalEntry),
		walletLocks: make(map[string]*sync.Mutex),
	}
}

func (s *memStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.walletLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.walletLocks[id] = l
	}
	return l
}

type memTx struct {
	acquired []*sync.Mutex
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx gateway.Tx) error) error {
	tx := &memTx{}
	defer func() {
		for i := len(tx.acquired) - 1; i >= 0; i-- {
			tx.acquired[i].Unlock()
		}
	}()
	return fn(ctx, tx)
}

func (s *memStore) LockWallets(ctx context.Context, tx gateway.Tx, ids []string) ([]*domain.Wallet, error) {
	mtx := tx.(*memTx)
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		l := s.lockFor(id)
		l.Lock()
		mtx.acquired = append(mtx.acquired, l)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Wallet, len(ids))
	for i, id := range ids {
		w, ok := s.wallets[id]
		if !ok {
			return nil, domain.NotFound(id)
		}
		cp := *w
		out[i] = &cp
	}
	return out, nil
}

func (s *memStore) GetWallet(ctx context.Context, id string) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, domain.NotFound(id)
	}
	cp := *w
	return &cp, nil
}

func (s *memStore) CreateWallet(ctx context.Context, tx gateway.Tx, userID string, currency domain.Currency) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.UserID == userID && w.Currency == currency {
			return nil, domain.NewError(domain.KindConflict, "wallet already exists for (user, currency)")
		}
	}
	now := time.Now()
	w := &domain.Wallet{
		ID:        domain.NewID(),
		UserID:    userID,
		Currency:  currency,
		Status:    domain.WalletActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.wallets[w.ID] = w
	cp := *w
	return &cp, nil
}

func (s *memStore) UpdateWalletBalance(ctx context.Context, tx gateway.Tx, walletID string, newBalance domain.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return domain.NotFound(walletID)
	}
	w.Balance = newBalance
	w.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) AppendJournal(ctx context.Context, tx gateway.Tx, entry *domain.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = domain.NewID()
	entry.CreatedAt = time.Now()
	s.nextSeq++
	cp := *entry
	s.journal = append(s.journal, &cp)
	if entry.IdempotencyKey != nil {
		s.byIdem[*entry.IdempotencyKey] = &cp
	}
	return nil
}

func (s *memStore) AppendOutbox(ctx context.Context, tx gateway.Tx, entry *domain.OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	entry.ID = s.nextSeq
	entry.CreatedAt = time.Now()
	cp := *entry
	s.outbox = append(s.outbox, &cp)
	return nil
}

func (s *memStore) JournalByIdempotencyKey(ctx context.Context, key string) (*domain.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byIdem[key]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) JournalByTransferID(ctx context.Context, transferID string) ([]*domain.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.JournalEntry
	for _, e := range s.journal {
		if e.TransferID() == transferID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListJournal(ctx context.Context, walletID string, filter gateway.JournalFilter) ([]*domain.JournalEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*domain.JournalEntry
	for i := len(s.journal) - 1; i >= 0; i-- {
		e := s.journal[i]
		if e.WalletID != walletID {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if !filter.CreatedAfter.IsZero() && e.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		if !filter.CreatedBefore.IsZero() && !e.CreatedAt.Before(filter.CreatedBefore) {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}
	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *memStore) PullUnpublishedOutbox(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.OutboxEntry
	for _, e := range s.outbox {
		if !e.Published {
			cp := *e
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) MarkOutboxPublished(ctx context.Context, ids []int64, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, e := range s.outbox {
		if set[e.ID] {
			e.Published = true
			t := publishedAt
			e.PublishedAt = &t
		}
	}
	return nil
}
