package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/platform/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultConflictRetries = 3

// ledgerService is the Account Ledger: the only component that mutates balances.
type ledgerService struct {
	BaseService
	store           portsrepo.LedgerStore
	customers       portssvc.CustomerDirectory
	conflictRetries int
}

// LedgerOption is a functional option for configuring the ledger service
type LedgerOption func(*ledgerService)

// WithCustomerDirectory makes OpenAccount verify that the owner exists.
func WithCustomerDirectory(dir portssvc.CustomerDirectory) LedgerOption {
	return func(s *ledgerService) {
		s.customers = dir
	}
}

// WithConflictRetries sets how often an operation is retried after a version conflict.
func WithConflictRetries(n int) LedgerOption {
	return func(s *ledgerService) {
		if n >= 0 {
			s.conflictRetries = n
		}
	}
}

// WithLedgerClock overrides the time source.
func WithLedgerClock(clock func() time.Time) LedgerOption {
	return func(s *ledgerService) {
		s.clock = clock
	}
}

// NewLedgerService creates the account ledger on top of a LedgerStore.
func NewLedgerService(store portsrepo.LedgerStore, options ...LedgerOption) portssvc.AccountLedger {
	svc := &ledgerService{
		store:           store,
		conflictRetries: defaultConflictRetries,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.AccountLedger = (*ledgerService)(nil)

func (s *ledgerService) Reserve(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return s.apply(ctx, domain.OpReserve, req)
}

func (s *ledgerService) Release(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return s.apply(ctx, domain.OpRelease, req)
}

func (s *ledgerService) Debit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return s.apply(ctx, domain.OpDebit, req)
}

func (s *ledgerService) Credit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return s.apply(ctx, domain.OpCredit, req)
}

// apply runs one ledger operation under the account lock. A previous application of
// the same operation for the correlation id is returned instead of applying it twice.
func (s *ledgerService) apply(ctx context.Context, op domain.LedgerOperation, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	if err := req.Validate(); err != nil {
		metrics.LedgerOperationsTotal.WithLabelValues(string(op), apperrors.Classify(err).String()).Inc()
		return nil, err
	}

	var result *domain.LedgerResult
	err := s.withConflictRetry(ctx, req.AccountID, func() error {
		return s.store.WithAccountLock(ctx, req.AccountID, func(ctx context.Context, tx portsrepo.LedgerTx) error {
			prior, err := tx.Entries(ctx, req.CorrelationID)
			if err != nil {
				return err
			}
			if previous, ok := prior.Latest(op); ok {
				replayed := domain.ResultFromEntry(previous, true)
				result = &replayed
				return nil
			}

			acc := tx.Account()
			next, entry, err := domain.ApplyLedgerOperation(acc, op, req, prior, uuid.NewString(), s.Now())
			if err != nil {
				return err
			}
			if err := tx.Apply(ctx, next, acc.Version, &entry); err != nil {
				return err
			}
			applied := domain.ResultFromEntry(entry, false)
			result = &applied
			return nil
		})
	})
	if err != nil {
		kind := apperrors.Classify(err)
		metrics.LedgerOperationsTotal.WithLabelValues(string(op), kind.String()).Inc()
		if apperrors.IsBusinessRejection(err) {
			s.LogDebug(ctx, "Ledger operation rejected",
				slog.String("operation", string(op)),
				slog.String("account_id", req.AccountID),
				slog.String("correlation_id", req.CorrelationID),
				slog.String("reason", err.Error()))
		} else {
			s.LogError(ctx, err, "Ledger operation failed",
				slog.String("operation", string(op)),
				slog.String("account_id", req.AccountID),
				slog.String("correlation_id", req.CorrelationID))
		}
		return nil, err
	}

	label := "APPLIED"
	if result.Replayed {
		label = "REPLAYED"
	}
	metrics.LedgerOperationsTotal.WithLabelValues(string(op), label).Inc()
	s.LogDebug(ctx, "Ledger operation completed",
		slog.String("operation", string(op)),
		slog.String("account_id", req.AccountID),
		slog.String("correlation_id", req.CorrelationID),
		slog.Bool("replayed", result.Replayed),
		slog.Int64("version", result.Version))
	return result, nil
}

// withConflictRetry re-runs fn while it fails with a version conflict, up to the configured number of retries.
func (s *ledgerService) withConflictRetry(ctx context.Context, accountID string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.conflictRetries; attempt++ {
		err = fn()
		if !errors.Is(err, apperrors.ErrConcurrentModification) {
			return err
		}
		s.LogDebug(ctx, "Version conflict on account, retrying",
			slog.String("account_id", accountID),
			slog.Int("attempt", attempt+1))
	}
	return err
}

// FindOperation reports the result of an operation previously applied for the correlation id.
func (s *ledgerService) FindOperation(ctx context.Context, accountID, correlationID string, op domain.LedgerOperation) (*domain.LedgerResult, error) {
	if !op.IsValid() {
		return nil, fmt.Errorf("%w: unknown ledger operation %q", apperrors.ErrValidation, op)
	}
	entries, err := s.store.FindEntries(ctx, accountID, correlationID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to read ledger entries",
				slog.String("account_id", accountID),
				slog.String("correlation_id", correlationID))
		}
		return nil, err
	}
	entry, ok := entries.Latest(op)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no %s for correlation %s on account %s", op, correlationID, accountID))
	}
	result := domain.ResultFromEntry(entry, true)
	return &result, nil
}

func (s *ledgerService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.store.FindAccountByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find account by ID",
				slog.String("account_id", accountID))
		}
		return nil, err
	}
	return account, nil
}

func (s *ledgerService) OpenAccount(ctx context.Context, ownerID, currencyCode string) (*domain.Account, error) {
	ownerID = strings.TrimSpace(ownerID)
	currencyCode = strings.ToUpper(strings.TrimSpace(currencyCode))
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", apperrors.ErrValidation)
	}
	if len(currencyCode) != 3 {
		return nil, fmt.Errorf("%w: currency code must have three letters", apperrors.ErrValidation)
	}

	if s.customers != nil {
		exists, err := s.customers.Exists(ctx, ownerID)
		if err != nil {
			s.LogError(ctx, err, "Customer lookup failed", slog.String("owner_id", ownerID))
			return nil, fmt.Errorf("checking customer %s: %w", ownerID, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: customer %s does not exist", apperrors.ErrValidation, ownerID)
		}
	}

	now := s.Now()
	account := domain.Account{
		AccountID:        uuid.NewString(),
		OwnerID:          ownerID,
		CurrencyCode:     currencyCode,
		Balance:          decimal.Zero,
		AvailableBalance: decimal.Zero,
		Status:           domain.AccountPending,
		Version:          0,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			LastUpdatedAt: now,
		},
	}
	if err := s.store.SaveAccount(ctx, account); err != nil {
		s.LogError(ctx, err, "Failed to save account", slog.String("account_id", account.AccountID))
		return nil, err
	}

	s.LogInfo(ctx, "Account opened",
		slog.String("account_id", account.AccountID),
		slog.String("owner_id", ownerID),
		slog.String("currency", currencyCode))
	return &account, nil
}

// ChangeAccountStatus moves the account along its lifecycle. Closing requires that no funds are held.
func (s *ledgerService) ChangeAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus) (*domain.Account, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown account status %q", apperrors.ErrValidation, status)
	}

	var updated domain.Account
	err := s.withConflictRetry(ctx, accountID, func() error {
		return s.store.WithAccountLock(ctx, accountID, func(ctx context.Context, tx portsrepo.LedgerTx) error {
			acc := tx.Account()
			if acc.Status == status {
				updated = acc
				return nil
			}
			if !acc.Status.CanTransitionTo(status) {
				return fmt.Errorf("%w: account %s cannot move from %s to %s", apperrors.ErrInvalidTransition, accountID, acc.Status, status)
			}
			if status == domain.AccountClosed && acc.HeldFunds().IsPositive() {
				return fmt.Errorf("%w: account %s still holds %s in reservations", apperrors.ErrInvalidTransition, accountID, acc.HeldFunds())
			}
			next := acc
			next.Status = status
			next.Version = acc.Version + 1
			next.LastUpdatedAt = s.Now()
			if err := tx.Apply(ctx, next, acc.Version, nil); err != nil {
				return err
			}
			updated = next
			return nil
		})
	})
	if err != nil {
		if apperrors.Classify(err) == apperrors.KindInternal {
			s.LogError(ctx, err, "Failed to change account status", slog.String("account_id", accountID))
		}
		return nil, err
	}

	s.LogInfo(ctx, "Account status changed",
		slog.String("account_id", accountID),
		slog.String("status", string(updated.Status)))
	return &updated, nil
}

func (s *ledgerService) ListHistory(ctx context.Context, accountID string, page, size int) ([]domain.BalanceHistoryEntry, int, error) {
	if page < 0 || size <= 0 {
		return nil, 0, fmt.Errorf("%w: page must be >= 0 and size > 0", apperrors.ErrValidation)
	}
	entries, total, err := s.store.ListHistory(ctx, accountID, size, page*size)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to list balance history",
				slog.String("account_id", accountID),
				slog.Int("page", page),
				slog.Int("size", size))
		}
		return nil, 0, err
	}
	if entries == nil {
		entries = []domain.BalanceHistoryEntry{}
	}
	return entries, total, nil
}
