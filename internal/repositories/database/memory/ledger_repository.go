package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
)

// accountSlot owns one account. sem is the exclusive per-account lock held for the
// whole of a WithAccountLock callback; mu only guards the fields for short reads.
type accountSlot struct {
	sem     chan struct{}
	mu      sync.RWMutex
	account domain.Account
	history []domain.BalanceHistoryEntry
}

// LedgerRepository is an in-process LedgerStore. There is no global lock on the
// write path: callbacks on different accounts run in parallel.
type LedgerRepository struct {
	mu    sync.RWMutex
	slots map[string]*accountSlot
}

// NewLedgerRepository creates an empty in-memory ledger.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{slots: make(map[string]*accountSlot)}
}

var _ portsrepo.LedgerStore = (*LedgerRepository)(nil)

func (r *LedgerRepository) slot(accountID string) (*accountSlot, error) {
	r.mu.RLock()
	s, ok := r.slots[accountID]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("account %s not found", accountID))
	}
	return s, nil
}

// SaveAccount inserts a new account.
func (r *LedgerRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.slots[account.AccountID]; exists {
		return fmt.Errorf("%w: account with ID %s already exists", apperrors.ErrDuplicate, account.AccountID)
	}
	r.slots[account.AccountID] = &accountSlot{
		sem:     make(chan struct{}, 1),
		account: account,
	}
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *LedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	s, err := r.slot(accountID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	acc := s.account
	s.mu.RUnlock()
	return &acc, nil
}

// FindEntries returns the entries of an account for one correlation id, oldest first.
func (r *LedgerRepository) FindEntries(ctx context.Context, accountID, correlationID string) (domain.CorrelationEntries, error) {
	s, err := r.slot(accountID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterEntries(s.history, correlationID), nil
}

// ListHistory returns a page of history entries, newest first.
func (r *LedgerRepository) ListHistory(ctx context.Context, accountID string, limit, offset int) ([]domain.BalanceHistoryEntry, int, error) {
	s, err := r.slot(accountID)
	if err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.history)
	newestFirst := make([]domain.BalanceHistoryEntry, total)
	copy(newestFirst, s.history)
	sort.Slice(newestFirst, func(i, j int) bool { return newestFirst[i].Version > newestFirst[j].Version })
	return paginate(newestFirst, limit, offset), total, nil
}

// WithAccountLock runs fn while holding the account's exclusive lock.
func (r *LedgerRepository) WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context, tx portsrepo.LedgerTx) error) error {
	s, err := r.slot(accountID)
	if err != nil {
		return err
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for lock on account %s: %w", accountID, ctx.Err())
	}
	defer func() { <-s.sem }()

	s.mu.RLock()
	tx := &ledgerTx{slot: s, account: s.account}
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func filterEntries(history []domain.BalanceHistoryEntry, correlationID string) domain.CorrelationEntries {
	var out domain.CorrelationEntries
	for _, e := range history {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// ledgerTx buffers writes until the callback returns without error.
type ledgerTx struct {
	slot    *accountSlot
	account domain.Account
	pending []domain.BalanceHistoryEntry
	dirty   bool
}

func (t *ledgerTx) Account() domain.Account {
	return t.account
}

func (t *ledgerTx) Entries(ctx context.Context, correlationID string) (domain.CorrelationEntries, error) {
	t.slot.mu.RLock()
	entries := filterEntries(t.slot.history, correlationID)
	t.slot.mu.RUnlock()
	return append(entries, filterEntries(t.pending, correlationID)...), nil
}

func (t *ledgerTx) Apply(ctx context.Context, account domain.Account, expectedVersion int64, entry *domain.BalanceHistoryEntry) error {
	if t.account.Version != expectedVersion {
		return fmt.Errorf("%w: account %s is at version %d, expected %d", apperrors.ErrConcurrentModification, account.AccountID, t.account.Version, expectedVersion)
	}
	t.account = account
	if entry != nil {
		t.pending = append(t.pending, *entry)
	}
	t.dirty = true
	return nil
}

func (t *ledgerTx) commit() error {
	if !t.dirty {
		return nil
	}
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()
	t.slot.account = t.account
	t.slot.history = append(t.slot.history, t.pending...)
	return nil
}
