package pgsql

import (
	"context"
	"fmt"
	"strings"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
	"github.com/SscSPs/funds_transfer_app/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	transactionColumns = `transaction_id, idempotency_key, source_account_id, destination_account_id, amount, currency_code,
		type, status, reference_number, description, failure_reason, reversal_of_id, reversed_by_id, completed_at,
		created_at, last_updated_at`
	sagaColumns = `saga_id, transaction_id, type, current_step, status, payload, error_detail, needs_reconciliation,
		created_at, last_updated_at`
)

// PgxTransferRepository stores transactions and the sagas driving them.
type PgxTransferRepository struct {
	BaseRepository
}

// newPgxTransferRepository creates a new repository for transfer data.
func newPgxTransferRepository(pool *pgxpool.Pool) *PgxTransferRepository {
	return &PgxTransferRepository{BaseRepository{Pool: pool}}
}

var _ portsrepo.TransferRepositoryFacade = (*PgxTransferRepository)(nil)

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var m models.Transaction
	err := row.Scan(
		&m.TransactionID,
		&m.IdempotencyKey,
		&m.SourceAccountID,
		&m.DestinationAccountID,
		&m.Amount,
		&m.CurrencyCode,
		&m.Type,
		&m.Status,
		&m.ReferenceNumber,
		&m.Description,
		&m.FailureReason,
		&m.ReversalOfID,
		&m.ReversedByID,
		&m.CompletedAt,
		&m.CreatedAt,
		&m.LastUpdatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	return toDomainTransaction(m), nil
}

func scanSaga(row pgx.Row) (domain.Saga, error) {
	var m models.Saga
	err := row.Scan(
		&m.SagaID,
		&m.TransactionID,
		&m.Type,
		&m.CurrentStep,
		&m.Status,
		&m.Payload,
		&m.ErrorDetail,
		&m.NeedsReconciliation,
		&m.CreatedAt,
		&m.LastUpdatedAt,
	)
	if err != nil {
		return domain.Saga{}, err
	}
	return toDomainSaga(m)
}

// CreateTransfer stores a transaction and its saga in one database transaction.
func (r *PgxTransferRepository) CreateTransfer(ctx context.Context, txn domain.Transaction, saga domain.Saga) error {
	mt := toModelTransaction(txn)
	ms, err := toModelSaga(saga)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);`,
			mt.TransactionID, mt.IdempotencyKey, mt.SourceAccountID, mt.DestinationAccountID, mt.Amount, mt.CurrencyCode,
			mt.Type, mt.Status, mt.ReferenceNumber, mt.Description, mt.FailureReason, mt.ReversalOfID, mt.ReversedByID,
			mt.CompletedAt, mt.CreatedAt, mt.LastUpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: transaction %s collides with an existing idempotency key or reference", apperrors.ErrDuplicate, mt.TransactionID)
			}
			return fmt.Errorf("failed to insert transaction %s: %w", mt.TransactionID, err)
		}

		_, err = tx.Exec(ctx, `INSERT INTO sagas (`+sagaColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`,
			ms.SagaID, ms.TransactionID, ms.Type, ms.CurrentStep, ms.Status, ms.Payload, ms.ErrorDetail,
			ms.NeedsReconciliation, ms.CreatedAt, ms.LastUpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: saga %s already exists", apperrors.ErrDuplicate, ms.SagaID)
			}
			return fmt.Errorf("failed to insert saga %s: %w", ms.SagaID, err)
		}
		return nil
	})
}

func (r *PgxTransferRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1;`
	txn, err := scanTransaction(r.Pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		return nil, notFoundOr(err, "transaction "+transactionID)
	}
	return &txn, nil
}

func (r *PgxTransferRepository) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1;`
	txn, err := scanTransaction(r.Pool.QueryRow(ctx, query, key))
	if err != nil {
		return nil, notFoundOr(err, "transaction for idempotency key")
	}
	return &txn, nil
}

// ListTransactionsByAccountID lists transactions touching the account, newest first.
func (r *PgxTransferRepository) ListTransactionsByAccountID(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := r.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE source_account_id = $1 OR destination_account_id = $1;`, accountID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions of account %s: %w", accountID, err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE source_account_id = $1 OR destination_account_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3;`
	rows, err := r.Pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions of account %s: %w", accountID, err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return txns, total, nil
}

func updateTransaction(ctx context.Context, q querier, txn domain.Transaction) error {
	m := toModelTransaction(txn)
	tag, err := q.Exec(ctx, `
		UPDATE transactions
		SET status = $1, failure_reason = $2, reversed_by_id = $3, completed_at = $4, last_updated_at = $5
		WHERE transaction_id = $6;`,
		m.Status, m.FailureReason, m.ReversedByID, m.CompletedAt, m.LastUpdatedAt, m.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", m.TransactionID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("transaction %s not found", m.TransactionID))
	}
	return nil
}

func saveSaga(ctx context.Context, q querier, saga domain.Saga) error {
	m, err := toModelSaga(saga)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE sagas
		SET current_step = $1, status = $2, payload = $3, error_detail = $4, needs_reconciliation = $5, last_updated_at = $6
		WHERE saga_id = $7;`,
		m.CurrentStep, m.Status, m.Payload, m.ErrorDetail, m.NeedsReconciliation, m.LastUpdatedAt, m.SagaID)
	if err != nil {
		return fmt.Errorf("failed to save saga %s: %w", m.SagaID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("saga %s not found", m.SagaID))
	}
	return nil
}

func (r *PgxTransferRepository) SaveSagaProgress(ctx context.Context, saga domain.Saga) error {
	return saveSaga(ctx, r.Pool, saga)
}

// FinalizeTransfer stores the saga and every given transaction in one commit.
func (r *PgxTransferRepository) FinalizeTransfer(ctx context.Context, saga domain.Saga, txns ...domain.Transaction) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, txn := range txns {
			if err := updateTransaction(ctx, tx, txn); err != nil {
				return err
			}
		}
		return saveSaga(ctx, tx, saga)
	})
}

func (r *PgxTransferRepository) FindSagaByID(ctx context.Context, sagaID string) (*domain.Saga, error) {
	query := `SELECT ` + sagaColumns + ` FROM sagas WHERE saga_id = $1;`
	saga, err := scanSaga(r.Pool.QueryRow(ctx, query, sagaID))
	if err != nil {
		return nil, notFoundOr(err, "saga "+sagaID)
	}
	return &saga, nil
}

func (r *PgxTransferRepository) FindSagaByTransactionID(ctx context.Context, transactionID string) (*domain.Saga, error) {
	query := `SELECT ` + sagaColumns + ` FROM sagas WHERE transaction_id = $1;`
	saga, err := scanSaga(r.Pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		return nil, notFoundOr(err, "saga for transaction "+transactionID)
	}
	return &saga, nil
}

// buildListSagasQuery renders the filter into a query ordered by least recently updated.
func buildListSagasQuery(filter portsrepo.SagaFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, "status = ANY("+next(statuses)+")")
	}
	if !filter.UpdatedBefore.IsZero() {
		conditions = append(conditions, "last_updated_at < "+next(filter.UpdatedBefore))
	}
	if filter.NeedsReconciliation != nil {
		conditions = append(conditions, "needs_reconciliation = "+next(*filter.NeedsReconciliation))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + sagaColumns + " FROM sagas")
	if len(conditions) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY last_updated_at ASC")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT " + next(filter.Limit))
	}
	sb.WriteString(";")
	return sb.String(), args
}

// ListSagas returns sagas matching the filter, least recently updated first.
func (r *PgxTransferRepository) ListSagas(ctx context.Context, filter portsrepo.SagaFilter) ([]domain.Saga, error) {
	query, args := buildListSagasQuery(filter)
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sagas: %w", err)
	}
	defer rows.Close()

	sagas := make([]domain.Saga, 0)
	for rows.Next() {
		saga, err := scanSaga(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saga row: %w", err)
		}
		sagas = append(sagas, saga)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saga rows: %w", err)
	}
	return sagas, nil
}
