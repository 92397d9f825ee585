package domain_test

import (
	"testing"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from domain.TransactionStatus
		to   domain.TransactionStatus
		want bool
	}{
		{name: "pending to processing", from: domain.TransactionPending, to: domain.TransactionProcessing, want: true},
		{name: "pending to failed", from: domain.TransactionPending, to: domain.TransactionFailed, want: true},
		{name: "processing to completed", from: domain.TransactionProcessing, to: domain.TransactionCompleted, want: true},
		{name: "completed to reversed", from: domain.TransactionCompleted, to: domain.TransactionReversed, want: true},
		{name: "same status", from: domain.TransactionProcessing, to: domain.TransactionProcessing, want: true},
		{name: "completed back to processing", from: domain.TransactionCompleted, to: domain.TransactionProcessing, want: false},
		{name: "failed is final", from: domain.TransactionFailed, to: domain.TransactionCompleted, want: false},
		{name: "reversed is final", from: domain.TransactionReversed, to: domain.TransactionCompleted, want: false},
		{name: "pending cannot skip to completed", from: domain.TransactionPending, to: domain.TransactionCompleted, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTransaction_SamePayload(t *testing.T) {
	base := domain.Transaction{
		SourceAccountID:      "a",
		DestinationAccountID: "b",
		Amount:               decimal.RequireFromString("10.50"),
		CurrencyCode:         "USD",
		Type:                 domain.TransactionTypeTransfer,
	}

	same := base
	same.Amount = decimal.RequireFromString("10.5")
	same.Description = "different description is not part of the payload"
	assert.True(t, base.SamePayload(same))

	otherAmount := base
	otherAmount.Amount = decimal.NewFromInt(11)
	assert.False(t, base.SamePayload(otherAmount))

	otherDestination := base
	otherDestination.DestinationAccountID = "c"
	assert.False(t, base.SamePayload(otherDestination))
}

func TestSaga_Lifecycle(t *testing.T) {
	saga := domain.Saga{CurrentStep: domain.StepStarted, Status: domain.SagaStarted}

	saga.Advance(domain.StepReserving, fixedNow)
	assert.Equal(t, domain.SagaInProgress, saga.Status)
	assert.True(t, saga.CurrentStep.InFlight())

	saga.FlagForReconciliation("release failed", fixedNow)
	assert.Equal(t, domain.SagaCompensating, saga.Status)
	assert.True(t, saga.NeedsReconciliation)
	assert.False(t, saga.Status.IsTerminal())

	saga.Finish(domain.SagaCompensated, "", fixedNow)
	assert.True(t, saga.Status.IsTerminal())
	assert.False(t, saga.NeedsReconciliation)
	assert.Equal(t, "release failed", saga.ErrorDetail)
}
