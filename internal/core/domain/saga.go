package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SagaStep is the position of a transfer saga in its forward path.
// The *ING steps are written before the ledger call, the *ED steps after it succeeded.
type SagaStep string

const (
	StepStarted   SagaStep = "STARTED"
	StepReserving SagaStep = "RESERVING"
	StepReserved  SagaStep = "RESERVED"
	StepDebiting  SagaStep = "DEBITING"
	StepDebited   SagaStep = "DEBITED"
	StepCrediting SagaStep = "CREDITING"
	StepCompleted SagaStep = "COMPLETED"
)

// InFlight reports whether the step marks a ledger call whose outcome was not yet recorded.
func (s SagaStep) InFlight() bool {
	return s == StepReserving || s == StepDebiting || s == StepCrediting
}

// SagaStatus is the overall state of a saga.
type SagaStatus string

const (
	SagaStarted      SagaStatus = "STARTED"
	SagaInProgress   SagaStatus = "IN_PROGRESS"
	SagaCompleted    SagaStatus = "COMPLETED"
	SagaCompensating SagaStatus = "COMPENSATING"
	SagaCompensated  SagaStatus = "COMPENSATED"
	SagaFailed       SagaStatus = "FAILED"
)

// IsTerminal reports whether the saga will not be driven any further.
func (s SagaStatus) IsTerminal() bool {
	return s == SagaCompleted || s == SagaCompensated || s == SagaFailed
}

// SagaType names the workflow the saga executes.
type SagaType string

const (
	SagaTypeTransfer SagaType = "TRANSFER"
	SagaTypeReversal SagaType = "REVERSAL"
)

// SagaPayload is everything needed to resume or compensate the saga.
type SagaPayload struct {
	Amount               decimal.Decimal `json:"amount"`
	SourceAccountID      string          `json:"sourceAccountID"`
	DestinationAccountID string          `json:"destinationAccountID"`
	CurrencyCode         string          `json:"currencyCode"`
}

// Saga tracks the progress of one transfer across the ledger operations it needs.
// The transaction id doubles as the correlation id of every ledger call.
type Saga struct {
	SagaID              string      `json:"sagaID"`
	TransactionID       string      `json:"transactionID"`
	Type                SagaType    `json:"type"`
	CurrentStep         SagaStep    `json:"currentStep"`
	Status              SagaStatus  `json:"status"`
	Payload             SagaPayload `json:"payload"`
	ErrorDetail         string      `json:"errorDetail,omitempty"`
	NeedsReconciliation bool        `json:"needsReconciliation"`
	AuditFields
}

// Advance moves the saga to step and marks it in progress.
func (s *Saga) Advance(step SagaStep, now time.Time) {
	s.CurrentStep = step
	if step == StepCompleted {
		s.Status = SagaCompleted
	} else if !s.Status.IsTerminal() && s.Status != SagaCompensating {
		s.Status = SagaInProgress
	}
	s.LastUpdatedAt = now
}

// Finish sets a terminal status together with the error detail that caused it.
func (s *Saga) Finish(status SagaStatus, detail string, now time.Time) {
	s.Status = status
	if detail != "" {
		s.ErrorDetail = detail
	}
	s.NeedsReconciliation = false
	s.LastUpdatedAt = now
}

// FlagForReconciliation records that compensation could not be completed automatically.
func (s *Saga) FlagForReconciliation(detail string, now time.Time) {
	s.Status = SagaCompensating
	s.NeedsReconciliation = true
	s.ErrorDetail = detail
	s.LastUpdatedAt = now
}
