package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
)

type storedTransaction struct {
	seq int64
	txn domain.Transaction
}

// TransferRepository keeps transactions and sagas in memory.
type TransferRepository struct {
	mu         sync.RWMutex
	seq        int64
	txns       map[string]*storedTransaction
	byKey      map[string]string
	byRef      map[string]string
	sagas      map[string]domain.Saga
	sagaForTxn map[string]string
}

// NewTransferRepository creates an empty in-memory transfer store.
func NewTransferRepository() *TransferRepository {
	return &TransferRepository{
		txns:       make(map[string]*storedTransaction),
		byKey:      make(map[string]string),
		byRef:      make(map[string]string),
		sagas:      make(map[string]domain.Saga),
		sagaForTxn: make(map[string]string),
	}
}

var _ portsrepo.TransferRepositoryFacade = (*TransferRepository)(nil)

// CreateTransfer stores a transaction and its saga atomically.
func (r *TransferRepository) CreateTransfer(ctx context.Context, txn domain.Transaction, saga domain.Saga) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[txn.IdempotencyKey]; exists {
		return fmt.Errorf("%w: transaction with idempotency key %s already exists", apperrors.ErrDuplicate, txn.IdempotencyKey)
	}
	if _, exists := r.byRef[txn.ReferenceNumber]; exists {
		return fmt.Errorf("%w: reference number %s already exists", apperrors.ErrDuplicate, txn.ReferenceNumber)
	}
	if _, exists := r.txns[txn.TransactionID]; exists {
		return fmt.Errorf("%w: transaction with ID %s already exists", apperrors.ErrDuplicate, txn.TransactionID)
	}

	r.seq++
	r.txns[txn.TransactionID] = &storedTransaction{seq: r.seq, txn: txn}
	r.byKey[txn.IdempotencyKey] = txn.TransactionID
	r.byRef[txn.ReferenceNumber] = txn.TransactionID
	r.sagas[saga.SagaID] = saga
	r.sagaForTxn[saga.TransactionID] = saga.SagaID
	return nil
}

func (r *TransferRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.txns[transactionID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("transaction %s not found", transactionID))
	}
	txn := st.txn
	return &txn, nil
}

func (r *TransferRepository) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("no transaction for idempotency key")
	}
	return r.FindTransactionByID(ctx, id)
}

// ListTransactionsByAccountID lists transactions touching the account, newest first.
func (r *TransferRepository) ListTransactionsByAccountID(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, int, error) {
	r.mu.RLock()
	matches := make([]*storedTransaction, 0)
	for _, st := range r.txns {
		if st.txn.SourceAccountID == accountID || st.txn.DestinationAccountID == accountID {
			matches = append(matches, st)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].txn.CreatedAt.Equal(matches[j].txn.CreatedAt) {
			return matches[i].txn.CreatedAt.After(matches[j].txn.CreatedAt)
		}
		return matches[i].seq > matches[j].seq
	})

	page := paginate(matches, limit, offset)
	out := make([]domain.Transaction, len(page))
	for i, st := range page {
		out[i] = st.txn
	}
	return out, len(matches), nil
}

func (r *TransferRepository) updateTransactionLocked(txn domain.Transaction) error {
	st, ok := r.txns[txn.TransactionID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("transaction %s not found", txn.TransactionID))
	}
	st.txn = txn
	return nil
}

func (r *TransferRepository) FindSagaByID(ctx context.Context, sagaID string) (*domain.Saga, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	saga, ok := r.sagas[sagaID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("saga %s not found", sagaID))
	}
	return &saga, nil
}

func (r *TransferRepository) FindSagaByTransactionID(ctx context.Context, transactionID string) (*domain.Saga, error) {
	r.mu.RLock()
	id, ok := r.sagaForTxn[transactionID]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("saga for transaction %s not found", transactionID))
	}
	return r.FindSagaByID(ctx, id)
}

func (r *TransferRepository) SaveSagaProgress(ctx context.Context, saga domain.Saga) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveSagaLocked(saga)
}

func (r *TransferRepository) saveSagaLocked(saga domain.Saga) error {
	if _, ok := r.sagas[saga.SagaID]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("saga %s not found", saga.SagaID))
	}
	r.sagas[saga.SagaID] = saga
	return nil
}

// FinalizeTransfer stores the saga and transactions under a single lock so readers
// never observe one without the other.
func (r *TransferRepository) FinalizeTransfer(ctx context.Context, saga domain.Saga, txns ...domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sagas[saga.SagaID]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("saga %s not found", saga.SagaID))
	}
	for _, txn := range txns {
		if _, ok := r.txns[txn.TransactionID]; !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("transaction %s not found", txn.TransactionID))
		}
	}
	for _, txn := range txns {
		_ = r.updateTransactionLocked(txn)
	}
	return r.saveSagaLocked(saga)
}

// ListSagas returns sagas matching the filter, least recently updated first.
func (r *TransferRepository) ListSagas(ctx context.Context, filter portsrepo.SagaFilter) ([]domain.Saga, error) {
	r.mu.RLock()
	out := make([]domain.Saga, 0)
	for _, saga := range r.sagas {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, saga.Status) {
			continue
		}
		if !filter.UpdatedBefore.IsZero() && !saga.LastUpdatedAt.Before(filter.UpdatedBefore) {
			continue
		}
		if filter.NeedsReconciliation != nil && saga.NeedsReconciliation != *filter.NeedsReconciliation {
			continue
		}
		out = append(out, saga)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdatedAt.Before(out[j].LastUpdatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
