// Package handler exposes the money engine over HTTP: wallet creation,
// deposit, withdraw, transfer, balance reads, and journal history.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/engine"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/gateway"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/http/httpx"
	"github.com/obedmokua0/sample-digital-wallet-platform/internal/infra/http/middleware"
)

// Wallet exposes wallet lifecycle and money-movement endpoints backed by
// one *engine.Engine.
type Wallet struct {
	engine *engine.Engine
}

// New constructs a Wallet handler over eng.
func New(eng *engine.Engine) *Wallet {
	return &Wallet{engine: eng}
}

type createWalletRequest struct {
	Currency string `json:"currency"`
}

// Create opens a new wallet for the caller.
func (h *Wallet) Create(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, domain.NewError(domain.KindValidation, "malformed request body"))
		return
	}

	userID := middleware.UserID(r.Context())
	wallet, err := h.engine.CreateWallet(r.Context(), userID, domain.Currency(req.Currency), correlationID(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, walletResponse(wallet))
}

// Balance returns the current state of one wallet.
func (h *Wallet) Balance(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "walletID")
	userID := middleware.UserID(r.Context())

	wallet, asOf, err := h.engine.GetBalance(r.Context(), walletID, userID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	resp := walletResponse(wallet)
	resp["as_of"] = asOf.UTC().Format("2006-01-02T15:04:05Z07:00")
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type mutationRequest struct {
	Amount   string            `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Deposit credits a wallet.
func (h *Wallet) Deposit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, domain.JournalDeposit)
}

// Withdraw debits a wallet.
func (h *Wallet) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, domain.JournalWithdrawal)
}

func (h *Wallet) mutate(w http.ResponseWriter, r *http.Request, jType domain.JournalType) {
	var req mutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, domain.NewError(domain.KindValidation, "malformed request body"))
		return
	}

	in := engine.DepositInput{
		WalletID:       chi.URLParam(r, "walletID"),
		Amount:         req.Amount,
		CallerUserID:   middleware.UserID(r.Context()),
		IdempotencyKey: idempotencyKey(r),
		CorrelationID:  correlationID(r),
		Metadata:       req.Metadata,
	}

	var (
		entry *domain.JournalEntry
		err   error
	)
	if jType == domain.JournalWithdrawal {
		entry, err = h.engine.Withdraw(r.Context(), in)
	} else {
		entry, err = h.engine.Deposit(r.Context(), in)
	}
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, journalResponse(entry))
}

type transferRequest struct {
	DestinationWalletID string            `json:"destination_wallet_id"`
	Amount              string            `json:"amount"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Transfer moves funds between two wallets.
func (h *Wallet) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, domain.NewError(domain.KindValidation, "malformed request body"))
		return
	}

	in := engine.TransferInput{
		SourceWalletID:      chi.URLParam(r, "walletID"),
		DestinationWalletID: req.DestinationWalletID,
		Amount:              req.Amount,
		CallerUserID:        middleware.UserID(r.Context()),
		IdempotencyKey:      idempotencyKey(r),
		CorrelationID:       correlationID(r),
		Metadata:            req.Metadata,
	}

	result, err := h.engine.Transfer(r.Context(), in)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"transfer_id": result.TransferID,
		"debit":       journalResponse(result.Debit),
		"credit":      journalResponse(result.Credit),
	})
}

// History returns a paginated, filterable journal for one wallet.
func (h *Wallet) History(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "walletID")
	userID := middleware.UserID(r.Context())

	filter, err := parseJournalFilter(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	entries, total, err := h.engine.ListJournal(r.Context(), walletID, userID, filter)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, journalResponse(e))
	}
	totalPages := (total + filter.PageSize - 1) / filter.PageSize
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"total_items": total,
		"total_pages": totalPages,
		"page":        filter.Page,
		"page_size":   filter.PageSize,
	})
}

func parseJournalFilter(r *http.Request) (gateway.JournalFilter, error) {
	q := r.URL.Query()
	filter := gateway.JournalFilter{Page: 1, PageSize: 20}

	if v := q.Get("page"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return filter, domain.NewError(domain.KindValidation, "page must be a positive integer")
		}
		filter.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return filter, domain.NewError(domain.KindValidation, "page_size must be a positive integer")
		}
		filter.PageSize = n
	}
	if v := q.Get("type"); v != "" {
		filter.Type = domain.JournalType(v)
	}
	return filter, nil
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, domain.NewError(domain.KindValidation, "not a positive integer")
		}
		n = n*10 + int(c-'0')
	}
	if n == 0 {
		return 0, domain.NewError(domain.KindValidation, "must be >= 1")
	}
	return n, nil
}

func idempotencyKey(r *http.Request) *string {
	if v := r.Header.Get("Idempotency-Key"); v != "" {
		return &v
	}
	return nil
}

func correlationID(r *http.Request) string {
	if v := r.Header.Get("X-Correlation-Id"); v != "" {
		return v
	}
	return uuid.NewString()
}

func walletResponse(w *domain.Wallet) map[string]any {
	return map[string]any{
		"id":         w.ID,
		"user_id":    w.UserID,
		"balance":    w.Balance.String(),
		"currency":   string(w.Currency),
		"status":     string(w.Status),
		"created_at": w.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		"updated_at": w.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func journalResponse(e *domain.JournalEntry) map[string]any {
	if e == nil {
		return nil
	}
	resp := map[string]any{
		"id":             e.ID,
		"wallet_id":      e.WalletID,
		"type":           string(e.Type),
		"amount":         e.Amount.String(),
		"currency":       string(e.Currency),
		"balance_before": e.BalanceBefore.String(),
		"balance_after":  e.BalanceAfter.String(),
		"status":         string(e.Status),
		"created_at":     e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if e.RelatedWalletID != nil {
		resp["related_wallet_id"] = *e.RelatedWalletID
	}
	if transferID := e.TransferID(); transferID != "" {
		resp["transfer_id"] = transferID
	}
	return resp
}
