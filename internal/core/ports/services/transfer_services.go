package services

import (
	"context"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	"github.com/SscSPs/funds_transfer_app/internal/dto"
)

// TransferSvc defines the customer facing transfer operations.
type TransferSvc interface {
	// ExecuteTransfer runs a transfer saga to a terminal state, or to PROCESSING when the
	// outcome of a ledger call cannot be established yet.
	ExecuteTransfer(ctx context.Context, cmd dto.TransferCommand) (*dto.TransferResult, error)

	GetTransfer(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// ListTransactionHistory returns a page of transactions touching the account, newest first.
	ListTransactionHistory(ctx context.Context, accountID string, page, size int) (*dto.TransactionHistoryPage, error)

	// ReverseTransfer moves the funds of a completed transfer back to its source.
	ReverseTransfer(ctx context.Context, transactionID, idempotencyKey, description string) (*dto.TransferResult, error)
}

// SagaOperatorSvc defines the operator operations on sagas.
type SagaOperatorSvc interface {
	GetSaga(ctx context.Context, sagaID string) (*domain.Saga, error)

	// GetSagaByTransactionID returns the saga that drives the given transaction.
	GetSagaByTransactionID(ctx context.Context, transactionID string) (*domain.Saga, error)

	ListSagasNeedingReconciliation(ctx context.Context, limit int) ([]domain.Saga, error)

	// ReconcileSaga retries the compensation of a saga flagged for reconciliation.
	ReconcileSaga(ctx context.Context, sagaID string) (*domain.Saga, error)
}

// TransferSvcFacade combines all transfer service interfaces.
type TransferSvcFacade interface {
	TransferSvc
	SagaOperatorSvc
}

// SagaRecoverer resumes sagas abandoned mid-flight, for example by a crash.
type SagaRecoverer interface {
	// RecoverStale drives every stale non-terminal saga to a terminal state and reports how many it handled.
	RecoverStale(ctx context.Context) (int, error)

	// Run calls RecoverStale every interval until ctx is done.
	Run(ctx context.Context, interval time.Duration) error
}

// IdempotencyLocker serializes work on one idempotency key, across goroutines and,
// depending on the implementation, across processes.
type IdempotencyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
