package services

import (
	"context"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
)

// LedgerOperator defines the four balance operations and the outcome lookup.
// Every operation is idempotent on (account, correlation id, operation).
type LedgerOperator interface {
	Reserve(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error)
	Release(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error)
	Debit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error)
	Credit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error)

	// FindOperation returns the result of op if it was applied for the correlation id,
	// or an error matching apperrors.ErrNotFound if it was not.
	FindOperation(ctx context.Context, accountID, correlationID string, op domain.LedgerOperation) (*domain.LedgerResult, error)
}

// AccountReaderSvc defines read operations for ledger accounts.
type AccountReaderSvc interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
}

// AccountLifecycleSvc defines account opening and status management.
type AccountLifecycleSvc interface {
	// OpenAccount creates a PENDING account with zero balance for an existing customer.
	OpenAccount(ctx context.Context, ownerID, currencyCode string) (*domain.Account, error)

	// ChangeAccountStatus moves an account along its lifecycle.
	ChangeAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus) (*domain.Account, error)

	// ListHistory returns a page of balance history, newest first, and the total count.
	ListHistory(ctx context.Context, accountID string, page, size int) ([]domain.BalanceHistoryEntry, int, error)
}

// AccountLedger combines all ledger service interfaces. It is the authority on balances.
type AccountLedger interface {
	LedgerOperator
	AccountReaderSvc
	AccountLifecycleSvc
}

// LedgerClient is how the orchestrator reaches the Account Ledger, in process or over HTTP.
type LedgerClient interface {
	LedgerOperator
	AccountReaderSvc
}
