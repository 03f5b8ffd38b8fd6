package engine

import (
	"encoding/json"
	"time"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
)

// Event payloads carry amounts as decimal strings at 2 fractional digits
// and timestamps as ISO-8601, independent of the 4-digit fixed-point
// representation the ledger persists internally.

type fundsEventPayload struct {
	EventType       string            `json:"event_type"`
	Timestamp       string            `json:"timestamp"`
	CorrelationID   string            `json:"correlation_id"`
	WalletID        string            `json:"wallet_id"`
	TransactionID   string            `json:"transaction_id"`
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency"`
	PreviousBalance string            `json:"previous_balance"`
	NewBalance      string            `json:"new_balance"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

func buildFundsEventPayload(evt domain.EventKind, walletID, txnID string, amount domain.Money, currency domain.Currency, before, after domain.Money, correlationID string, meta map[string]string, now time.Time) ([]byte, error) {
	return json.Marshal(fundsEventPayload{
		EventType:       string(evt),
		Timestamp:       now.UTC().Format(time.RFC3339),
		CorrelationID:   correlationID,
		WalletID:        walletID,
		TransactionID:   txnID,
		Amount:          amount.StringAt2(),
		Currency:        string(currency),
		PreviousBalance: before.StringAt2(),
		NewBalance:      after.StringAt2(),
		Metadata:        meta,
	})
}

type transferEventPayload struct {
	EventType           string            `json:"event_type"`
	Timestamp           string            `json:"timestamp"`
	CorrelationID       string            `json:"correlation_id"`
	SourceWalletID      string            `json:"source_wallet_id"`
	DestinationWalletID string            `json:"destination_wallet_id"`
	TransferID          string            `json:"transfer_id"`
	TransactionID       string            `json:"transaction_id"`
	Amount              string            `json:"amount"`
	Currency            string            `json:"currency"`
	PreviousBalance     string            `json:"previous_balance"`
	NewBalance          string            `json:"new_balance"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

func buildTransferEventPayload(evt domain.EventKind, sourceID, destID, transferID, txnID string, amount domain.Money, currency domain.Currency, before, after domain.Money, correlationID string, meta map[string]string, now time.Time) ([]byte, error) {
	return json.Marshal(transferEventPayload{
		EventType:           string(evt),
		Timestamp:           now.UTC().Format(time.RFC3339),
		CorrelationID:       correlationID,
		SourceWalletID:      sourceID,
		DestinationWalletID: destID,
		TransferID:          transferID,
		TransactionID:       txnID,
		Amount:              amount.StringAt2(),
		Currency:            string(currency),
		PreviousBalance:     before.StringAt2(),
		NewBalance:          after.StringAt2(),
		Metadata:            meta,
	})
}

type walletCreatedPayload struct {
	EventType      string `json:"event_type"`
	Timestamp      string `json:"timestamp"`
	CorrelationID  string `json:"correlation_id"`
	WalletID       string `json:"wallet_id"`
	UserID         string `json:"user_id"`
	Currency       string `json:"currency"`
	InitialBalance string `json:"initial_balance"`
}

func buildWalletCreatedPayload(w *domain.Wallet, correlationID string, now time.Time) ([]byte, error) {
	return json.Marshal(walletCreatedPayload{
		EventType:      string(domain.EventWalletCreated),
		Timestamp:      now.UTC().Format(time.RFC3339),
		CorrelationID:  correlationID,
		WalletID:       w.ID,
		UserID:         w.UserID,
		Currency:       string(w.Currency),
		InitialBalance: w.Balance.StringAt2(),
	})
}
