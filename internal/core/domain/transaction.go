package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the customer-facing status of a transfer.
type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "PENDING"
	TransactionProcessing TransactionStatus = "PROCESSING"
	TransactionCompleted  TransactionStatus = "COMPLETED"
	TransactionFailed     TransactionStatus = "FAILED"
	TransactionReversed   TransactionStatus = "REVERSED"
	TransactionCancelled  TransactionStatus = "CANCELLED"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending:    {TransactionProcessing, TransactionFailed, TransactionCancelled},
	TransactionProcessing: {TransactionCompleted, TransactionFailed, TransactionCancelled},
	TransactionCompleted:  {TransactionReversed},
}

// CanTransitionTo reports whether a transaction in status s may move to next.
// Staying in the same status is always allowed.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsFinal reports whether no further forward progress is expected.
// COMPLETED is final for the saga even though a reversal may follow later.
func (s TransactionStatus) IsFinal() bool {
	switch s {
	case TransactionCompleted, TransactionFailed, TransactionReversed, TransactionCancelled:
		return true
	}
	return false
}

// TransactionType distinguishes customer transfers from reversals of earlier ones.
type TransactionType string

const (
	TransactionTypeTransfer TransactionType = "TRANSFER"
	TransactionTypeReversal TransactionType = "REVERSAL"
)

// Transaction is the durable record of one transfer request.
type Transaction struct {
	TransactionID        string            `json:"transactionID"`
	IdempotencyKey       string            `json:"idempotencyKey"`
	SourceAccountID      string            `json:"sourceAccountID"`
	DestinationAccountID string            `json:"destinationAccountID"`
	Amount               decimal.Decimal   `json:"amount"`
	CurrencyCode         string            `json:"currencyCode"`
	Type                 TransactionType   `json:"type"`
	Status               TransactionStatus `json:"status"`
	ReferenceNumber      string            `json:"referenceNumber"`
	Description          string            `json:"description,omitempty"`
	FailureReason        string            `json:"failureReason,omitempty"`
	ReversalOfID         *string           `json:"reversalOfID,omitempty"`
	ReversedByID         *string           `json:"reversedByID,omitempty"`
	CompletedAt          *time.Time        `json:"completedAt,omitempty"`
	AuditFields
}

// SamePayload reports whether other describes the same transfer as t.
// Used to detect an idempotency key being reused for a different request.
func (t Transaction) SamePayload(other Transaction) bool {
	return t.SourceAccountID == other.SourceAccountID &&
		t.DestinationAccountID == other.DestinationAccountID &&
		t.Amount.Equal(other.Amount) &&
		t.CurrencyCode == other.CurrencyCode &&
		t.Type == other.Type
}
