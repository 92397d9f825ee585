package repositories

import (
	"context"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
)

// LedgerReader defines read operations for ledger accounts and their history.
type LedgerReader interface {
	// FindAccountByID retrieves an account by its unique identifier.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// FindEntries returns the history entries of an account written for one correlation id, oldest first.
	FindEntries(ctx context.Context, accountID, correlationID string) (domain.CorrelationEntries, error)

	// ListHistory returns a page of the balance history, newest first, together with the total count.
	ListHistory(ctx context.Context, accountID string, limit, offset int) ([]domain.BalanceHistoryEntry, int, error)
}

// LedgerWriter defines write operations for ledger accounts.
type LedgerWriter interface {
	// SaveAccount persists a new account.
	SaveAccount(ctx context.Context, account domain.Account) error

	// WithAccountLock runs fn while holding the exclusive lock of one account.
	// Changes made through the LedgerTx are committed when fn returns nil and discarded otherwise.
	WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the view of a single locked account handed to WithAccountLock callbacks.
type LedgerTx interface {
	// Account is the state of the account as read when the lock was taken.
	Account() domain.Account

	// Entries returns the history entries for a correlation id, oldest first.
	Entries(ctx context.Context, correlationID string) (domain.CorrelationEntries, error)

	// Apply stores the new account state and, when entry is not nil, appends it to the history.
	// It fails with apperrors.ErrConcurrentModification when the stored version is not expectedVersion.
	Apply(ctx context.Context, account domain.Account, expectedVersion int64, entry *domain.BalanceHistoryEntry) error
}

// LedgerStore combines all ledger repository interfaces.
type LedgerStore interface {
	LedgerReader
	LedgerWriter
}
