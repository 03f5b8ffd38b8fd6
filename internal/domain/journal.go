package domain

import "time"

// JournalType is the tagged variant of balance movements a journal entry
// can record, kept as a named Go type rather than a bare string. The set of
// values is fixed by the constants below; the compiler does not check that
// a switch over JournalType handles every case.
type JournalType string

const (
	JournalDeposit         JournalType = "deposit"
	JournalWithdrawal      JournalType = "withdrawal"
	JournalTransferDebit   JournalType = "transfer_debit"
	JournalTransferCredit  JournalType = "transfer_credit"
)

// IsTransferLeg reports whether t requires a counterpart wallet.
func (t JournalType) IsTransferLeg() bool {
	return t == JournalTransferDebit || t == JournalTransferCredit
}

// Sign returns +1 for credits to the primary wallet's balance and -1 for
// debits, so a wallet's balance can be reconstructed by folding its
// journal entries with amount*Sign().
func (t JournalType) Sign() int {
	switch t {
	case JournalDeposit, JournalTransferCredit:
		return 1
	case JournalWithdrawal, JournalTransferDebit:
		return -1
	default:
		return 0
	}
}

// JournalStatus tracks whether a journal entry's movement has settled.
// The engine only ever writes JournalCompleted: a journal entry is append
// -only and is never written before its mutation has already happened
// inside the same transaction, so Pending/Failed exist for schema
// completeness rather than being reachable from the current engine.
type JournalStatus string

const (
	JournalPending   JournalStatus = "pending"
	JournalCompleted JournalStatus = "completed"
	JournalFailed    JournalStatus = "failed"
)

// JournalEntry is an immutable record of one balance movement on one
// wallet. A transfer produces two entries sharing a transfer_id.
type JournalEntry struct {
	ID               string
	WalletID         string
	RelatedWalletID  *string
	Type             JournalType
	Amount           Money
	Currency         Currency
	BalanceBefore    Money
	BalanceAfter     Money
	Status           JournalStatus
	IdempotencyKey   *string
	Metadata         map[string]string
	CreatedAt        time.Time
}

// TransferID reads the synthesized transfer_id out of Metadata, if present.
func (j *JournalEntry) TransferID() string {
	if j.Metadata == nil {
		return ""
	}
	return j.Metadata["transfer_id"]
}
