package pgsql

import (
	"context"
	"fmt"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
	"github.com/SscSPs/funds_transfer_app/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	accountColumns = `account_id, owner_id, currency_code, balance, available_balance, status, version, created_at, last_updated_at`
	entryColumns   = `entry_id, account_id, operation, reason, correlation_id, amount, delta, previous_balance, new_balance, available_balance, version, created_at`
)

// PgxLedgerRepository stores accounts and their balance history. The per-account lock is
// the row lock taken by SELECT ... FOR UPDATE.
type PgxLedgerRepository struct {
	BaseRepository
}

// newPgxLedgerRepository creates a new repository for ledger data.
func newPgxLedgerRepository(pool *pgxpool.Pool) *PgxLedgerRepository {
	return &PgxLedgerRepository{BaseRepository{Pool: pool}}
}

var _ portsrepo.LedgerStore = (*PgxLedgerRepository)(nil)

func scanAccount(row pgx.Row) (domain.Account, error) {
	var m models.Account
	err := row.Scan(
		&m.AccountID,
		&m.OwnerID,
		&m.CurrencyCode,
		&m.Balance,
		&m.AvailableBalance,
		&m.Status,
		&m.Version,
		&m.CreatedAt,
		&m.LastUpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	return toDomainAccount(m), nil
}

func scanEntries(rows pgx.Rows) ([]domain.BalanceHistoryEntry, error) {
	defer rows.Close()
	var out []domain.BalanceHistoryEntry
	for rows.Next() {
		var m models.BalanceHistoryEntry
		if err := rows.Scan(
			&m.EntryID,
			&m.AccountID,
			&m.Operation,
			&m.Reason,
			&m.CorrelationID,
			&m.Amount,
			&m.Delta,
			&m.PreviousBalance,
			&m.NewBalance,
			&m.AvailableBalance,
			&m.Version,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan balance history row: %w", err)
		}
		out = append(out, toDomainEntry(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance history rows: %w", err)
	}
	return out, nil
}

// SaveAccount inserts a new account.
func (r *PgxLedgerRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	m := toModelAccount(account)
	query := `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`
	_, err := r.Pool.Exec(ctx, query,
		m.AccountID,
		m.OwnerID,
		m.CurrencyCode,
		m.Balance,
		m.AvailableBalance,
		m.Status,
		m.Version,
		m.CreatedAt,
		m.LastUpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: account with ID %s already exists", apperrors.ErrDuplicate, m.AccountID)
		}
		return fmt.Errorf("failed to save account %s: %w", m.AccountID, err)
	}
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *PgxLedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`
	account, err := scanAccount(r.Pool.QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, notFoundOr(err, "account "+accountID)
	}
	return &account, nil
}

func findEntries(ctx context.Context, q querier, accountID, correlationID string) (domain.CorrelationEntries, error) {
	query := `SELECT ` + entryColumns + ` FROM balance_history
		WHERE account_id = $1 AND correlation_id = $2
		ORDER BY version ASC;`
	rows, err := q.Query(ctx, query, accountID, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries of account %s: %w", accountID, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	return domain.CorrelationEntries(entries), nil
}

// FindEntries returns the entries of an account for one correlation id, oldest first.
func (r *PgxLedgerRepository) FindEntries(ctx context.Context, accountID, correlationID string) (domain.CorrelationEntries, error) {
	return findEntries(ctx, r.Pool, accountID, correlationID)
}

// ListHistory returns a page of the balance history, newest first.
func (r *PgxLedgerRepository) ListHistory(ctx context.Context, accountID string, limit, offset int) ([]domain.BalanceHistoryEntry, int, error) {
	var total int
	var exists bool
	err := r.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE account_id = $1),
		       (SELECT COUNT(*) FROM balance_history WHERE account_id = $1);`, accountID).Scan(&exists, &total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history of account %s: %w", accountID, err)
	}
	if !exists {
		return nil, 0, apperrors.NewNotFoundError(fmt.Sprintf("account %s not found", accountID))
	}

	query := `SELECT ` + entryColumns + ` FROM balance_history
		WHERE account_id = $1
		ORDER BY version DESC
		LIMIT $2 OFFSET $3;`
	rows, err := r.Pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history of account %s: %w", accountID, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// WithAccountLock locks the account row for the duration of fn inside one database transaction.
func (r *PgxLedgerRepository) WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context, tx portsrepo.LedgerTx) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1 FOR UPDATE;`
		account, err := scanAccount(tx.QueryRow(ctx, query, accountID))
		if err != nil {
			return notFoundOr(err, "account "+accountID)
		}
		return fn(ctx, &pgxLedgerTx{tx: tx, account: account})
	})
}

type pgxLedgerTx struct {
	tx      pgx.Tx
	account domain.Account
}

func (t *pgxLedgerTx) Account() domain.Account {
	return t.account
}

func (t *pgxLedgerTx) Entries(ctx context.Context, correlationID string) (domain.CorrelationEntries, error) {
	return findEntries(ctx, t.tx, t.account.AccountID, correlationID)
}

func (t *pgxLedgerTx) Apply(ctx context.Context, account domain.Account, expectedVersion int64, entry *domain.BalanceHistoryEntry) error {
	m := toModelAccount(account)
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts
		SET balance = $1, available_balance = $2, status = $3, version = $4, last_updated_at = $5
		WHERE account_id = $6 AND version = $7;`,
		m.Balance, m.AvailableBalance, m.Status, m.Version, m.LastUpdatedAt, m.AccountID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", m.AccountID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s is no longer at version %d", apperrors.ErrConcurrentModification, m.AccountID, expectedVersion)
	}

	if entry != nil {
		e := toModelEntry(*entry)
		_, err := t.tx.Exec(ctx, `INSERT INTO balance_history (`+entryColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`,
			e.EntryID, e.AccountID, e.Operation, e.Reason, e.CorrelationID, e.Amount, e.Delta,
			e.PreviousBalance, e.NewBalance, e.AvailableBalance, e.Version, e.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: history version %d of account %s already written", apperrors.ErrConcurrentModification, e.Version, e.AccountID)
			}
			return fmt.Errorf("failed to append history entry to account %s: %w", e.AccountID, err)
		}
	}
	t.account = account
	return nil
}
