package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the transactions row.
type Transaction struct {
	TransactionID        string          `db:"transaction_id"`
	IdempotencyKey       string          `db:"idempotency_key"`
	SourceAccountID      string          `db:"source_account_id"`
	DestinationAccountID string          `db:"destination_account_id"`
	Amount               decimal.Decimal `db:"amount"`
	CurrencyCode         string          `db:"currency_code"`
	Type                 string          `db:"type"`
	Status               string          `db:"status"`
	ReferenceNumber      string          `db:"reference_number"`
	Description          string          `db:"description"`
	FailureReason        string          `db:"failure_reason"`
	ReversalOfID         *string         `db:"reversal_of_id"`
	ReversedByID         *string         `db:"reversed_by_id"`
	CompletedAt          *time.Time      `db:"completed_at"`
	AuditFields
}

// Saga is the sagas row. Payload holds the JSON encoded domain.SagaPayload.
type Saga struct {
	SagaID              string `db:"saga_id"`
	TransactionID       string `db:"transaction_id"`
	Type                string `db:"type"`
	CurrentStep         string `db:"current_step"`
	Status              string `db:"status"`
	Payload             []byte `db:"payload"`
	ErrorDetail         string `db:"error_detail"`
	NeedsReconciliation bool   `db:"needs_reconciliation"`
	AuditFields
}
