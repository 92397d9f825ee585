package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
)

// SagaFilter narrows ListSagas. Zero values mean "no restriction"; Limit 0 means no limit.
type SagaFilter struct {
	Statuses            []domain.SagaStatus
	UpdatedBefore       time.Time
	NeedsReconciliation *bool
	Limit               int
}

// TransferReader defines read operations for transactions and their sagas.
type TransferReader interface {
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)

	// ListTransactionsByAccountID returns transactions where the account is source or destination,
	// newest first, and the total number of matches.
	ListTransactionsByAccountID(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, int, error)

	FindSagaByID(ctx context.Context, sagaID string) (*domain.Saga, error)
	FindSagaByTransactionID(ctx context.Context, transactionID string) (*domain.Saga, error)
	ListSagas(ctx context.Context, filter SagaFilter) ([]domain.Saga, error)
}

// TransferWriter defines write operations for transactions and their sagas.
type TransferWriter interface {
	// CreateTransfer stores a new transaction and its saga atomically.
	// A second transaction with the same idempotency key fails with apperrors.ErrDuplicate.
	CreateTransfer(ctx context.Context, txn domain.Transaction, saga domain.Saga) error

	// SaveSagaProgress stores the current step, status and error detail of a saga.
	SaveSagaProgress(ctx context.Context, saga domain.Saga) error

	// FinalizeTransfer stores the saga together with every given transaction in one commit.
	FinalizeTransfer(ctx context.Context, saga domain.Saga, txns ...domain.Transaction) error
}

// TransferRepositoryFacade combines all transfer repository interfaces.
type TransferRepositoryFacade interface {
	TransferReader
	TransferWriter
}
