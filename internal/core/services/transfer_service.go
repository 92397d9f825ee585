package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/dto"
	"github.com/SscSPs/funds_transfer_app/internal/utils"
	"github.com/google/uuid"
)

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// transferService is the Transfer Orchestrator. It owns transactions and sagas and
// moves money only through the ledger client.
type transferService struct {
	*sagaRunner
}

// NewTransferService creates the transfer orchestrator.
func NewTransferService(repo portsrepo.TransferRepositoryFacade, ledger portssvc.LedgerClient, options ...TransferOption) portssvc.TransferSvcFacade {
	return &transferService{sagaRunner: newSagaRunner(repo, ledger, options...)}
}

var _ portssvc.TransferSvcFacade = (*transferService)(nil)

func validateTransferCommand(cmd dto.TransferCommand) error {
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return fmt.Errorf("%w: idempotency key is required", apperrors.ErrValidation)
	}
	if _, err := uuid.Parse(cmd.SourceAccountID); err != nil {
		return fmt.Errorf("%w: source account id must be a UUID", apperrors.ErrValidation)
	}
	if _, err := uuid.Parse(cmd.DestinationAccountID); err != nil {
		return fmt.Errorf("%w: destination account id must be a UUID", apperrors.ErrValidation)
	}
	if cmd.SourceAccountID == cmd.DestinationAccountID {
		return fmt.Errorf("%w: source and destination accounts must differ", apperrors.ErrValidation)
	}
	if err := domain.ValidateAmount(cmd.Amount); err != nil {
		return err
	}
	if !currencyCodePattern.MatchString(cmd.CurrencyCode) {
		return fmt.Errorf("%w: currency code must be three uppercase letters", apperrors.ErrValidation)
	}
	return nil
}

func (s *transferService) ExecuteTransfer(ctx context.Context, cmd dto.TransferCommand) (*dto.TransferResult, error) {
	cmd.CurrencyCode = strings.ToUpper(strings.TrimSpace(cmd.CurrencyCode))
	if err := validateTransferCommand(cmd); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, lockKey(cmd.IdempotencyKey))
	if err != nil {
		return nil, err
	}
	defer unlock()

	candidate := cmd.ToTransaction()
	if result, found, err := s.replay(ctx, candidate); found || err != nil {
		return result, err
	}

	if err := s.preflight(ctx, cmd.SourceAccountID, cmd.DestinationAccountID, cmd.CurrencyCode); err != nil {
		return nil, err
	}

	return s.start(ctx, candidate, domain.SagaTypeTransfer)
}

// replay returns the stored result of an earlier request with the same idempotency key.
func (s *transferService) replay(ctx context.Context, candidate domain.Transaction) (*dto.TransferResult, bool, error) {
	existing, err := s.repo.FindTransactionByIdempotencyKey(ctx, candidate.IdempotencyKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, false, nil
		}
		s.LogError(ctx, err, "Failed to look up idempotency key",
			slog.String("idempotency_key", candidate.IdempotencyKey))
		return nil, false, err
	}
	if !existing.SamePayload(candidate) {
		return nil, true, fmt.Errorf("%w: key %s belongs to transaction %s", apperrors.ErrIdempotencyMismatch, candidate.IdempotencyKey, existing.TransactionID)
	}
	s.LogDebug(ctx, "Replaying transfer for idempotency key",
		slog.String("idempotency_key", candidate.IdempotencyKey),
		slog.String("transaction_id", existing.TransactionID))
	return dto.ToTransferResult(existing, true), true, nil
}

// preflight checks that both accounts exist and use the transfer currency.
func (s *transferService) preflight(ctx context.Context, sourceID, destinationID, currency string) error {
	for _, accountID := range []string{sourceID, destinationID} {
		account, err := s.ledger.GetAccount(ctx, accountID)
		if err != nil {
			if apperrors.Classify(err) != apperrors.KindNotFound {
				s.LogError(ctx, err, "Pre-flight account lookup failed", slog.String("account_id", accountID))
			}
			return err
		}
		if account.CurrencyCode != currency {
			return fmt.Errorf("%w: account %s holds %s, transfer is in %s", apperrors.ErrValidation, accountID, account.CurrencyCode, currency)
		}
	}
	return nil
}

// start stores a new transaction and its saga, then drives the saga. The saga runs on a
// context detached from the caller so that a disconnect cannot stop it between steps.
func (s *transferService) start(ctx context.Context, txn domain.Transaction, sagaType domain.SagaType) (*dto.TransferResult, error) {
	now := s.Now()
	txn.TransactionID = uuid.NewString()
	txn.Status = domain.TransactionPending
	txn.CreatedAt = now
	txn.LastUpdatedAt = now

	saga := domain.Saga{
		SagaID:        uuid.NewString(),
		TransactionID: txn.TransactionID,
		Type:          sagaType,
		CurrentStep:   domain.StepStarted,
		Status:        domain.SagaStarted,
		Payload: domain.SagaPayload{
			Amount:               txn.Amount,
			SourceAccountID:      txn.SourceAccountID,
			DestinationAccountID: txn.DestinationAccountID,
			CurrencyCode:         txn.CurrencyCode,
		},
		AuditFields: domain.AuditFields{CreatedAt: now, LastUpdatedAt: now},
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		txn.ReferenceNumber, err = utils.GenerateReferenceNumber(now)
		if err != nil {
			return nil, fmt.Errorf("generating reference number: %w", err)
		}
		err = s.repo.CreateTransfer(ctx, txn, saga)
		if !errors.Is(err, apperrors.ErrDuplicate) {
			break
		}
		// Without a locker a concurrent request with the same key can win the insert.
		if result, found, rerr := s.replay(ctx, txn); found || rerr != nil {
			return result, rerr
		}
	}
	if err != nil {
		s.LogError(ctx, err, "Failed to create transfer",
			slog.String("idempotency_key", txn.IdempotencyKey))
		return nil, err
	}

	s.LogInfo(ctx, "Transfer started",
		slog.String("transaction_id", txn.TransactionID),
		slog.String("saga_id", saga.SagaID),
		slog.String("reference_number", txn.ReferenceNumber),
		slog.String("type", string(txn.Type)))

	if err := s.drive(context.WithoutCancel(ctx), &txn, &saga); err != nil {
		return nil, err
	}
	return dto.ToTransferResult(&txn, false), nil
}

func (s *transferService) GetTransfer(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	txn, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find transaction by ID",
				slog.String("transaction_id", transactionID))
		}
		return nil, err
	}
	return txn, nil
}

func (s *transferService) ListTransactionHistory(ctx context.Context, accountID string, page, size int) (*dto.TransactionHistoryPage, error) {
	if page < 0 || size <= 0 {
		return nil, fmt.Errorf("%w: page must be >= 0 and size > 0", apperrors.ErrValidation)
	}
	if _, err := s.ledger.GetAccount(ctx, accountID); err != nil {
		if apperrors.Classify(err) != apperrors.KindNotFound {
			s.LogError(ctx, err, "Account lookup for transaction history failed", slog.String("account_id", accountID))
		}
		return nil, err
	}
	txns, total, err := s.repo.ListTransactionsByAccountID(ctx, accountID, size, page*size)
	if err != nil {
		s.LogError(ctx, err, "Failed to list transactions by account",
			slog.String("account_id", accountID),
			slog.Int("page", page),
			slog.Int("size", size))
		return nil, err
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	return &dto.TransactionHistoryPage{Items: txns, Page: page, Size: size, Total: total}, nil
}

// ReverseTransfer runs a REVERSAL saga moving the amount of a completed transfer back to its source.
// Without an idempotency key the reversal is keyed on the original transaction, so it can run only once.
func (s *transferService) ReverseTransfer(ctx context.Context, transactionID, idempotencyKey, description string) (*dto.TransferResult, error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = "reversal-" + transactionID
	}

	unlock, err := s.lock(ctx, lockKey(idempotencyKey))
	if err != nil {
		return nil, err
	}
	defer unlock()

	original, err := s.GetTransfer(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	originalID := original.TransactionID
	candidate := domain.Transaction{
		IdempotencyKey:       idempotencyKey,
		SourceAccountID:      original.DestinationAccountID,
		DestinationAccountID: original.SourceAccountID,
		Amount:               original.Amount,
		CurrencyCode:         original.CurrencyCode,
		Type:                 domain.TransactionTypeReversal,
		Description:          description,
		ReversalOfID:         &originalID,
	}
	if candidate.Description == "" {
		candidate.Description = "Reversal of " + original.ReferenceNumber
	}

	if result, found, err := s.replay(ctx, candidate); found || err != nil {
		return result, err
	}

	if original.Type != domain.TransactionTypeTransfer {
		return nil, fmt.Errorf("%w: transaction %s is a %s and cannot be reversed", apperrors.ErrInvalidTransition, originalID, original.Type)
	}
	if !original.Status.CanTransitionTo(domain.TransactionReversed) || original.ReversedByID != nil {
		return nil, fmt.Errorf("%w: transaction %s is %s and cannot be reversed", apperrors.ErrInvalidTransition, originalID, original.Status)
	}

	return s.start(ctx, candidate, domain.SagaTypeReversal)
}

func (s *transferService) GetSaga(ctx context.Context, sagaID string) (*domain.Saga, error) {
	saga, err := s.repo.FindSagaByID(ctx, sagaID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find saga by ID", slog.String("saga_id", sagaID))
		}
		return nil, err
	}
	return saga, nil
}

func (s *transferService) GetSagaByTransactionID(ctx context.Context, transactionID string) (*domain.Saga, error) {
	saga, err := s.repo.FindSagaByTransactionID(ctx, transactionID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find saga by transaction ID", slog.String("transaction_id", transactionID))
		}
		return nil, err
	}
	return saga, nil
}

func (s *transferService) ListSagasNeedingReconciliation(ctx context.Context, limit int) ([]domain.Saga, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", apperrors.ErrValidation)
	}
	flagged := true
	sagas, err := s.repo.ListSagas(ctx, portsrepo.SagaFilter{NeedsReconciliation: &flagged, Limit: limit})
	if err != nil {
		s.LogError(ctx, err, "Failed to list sagas needing reconciliation")
		return nil, err
	}
	if sagas == nil {
		sagas = []domain.Saga{}
	}
	return sagas, nil
}

// ReconcileSaga retries the compensation of a saga that was flagged for reconciliation.
func (s *transferService) ReconcileSaga(ctx context.Context, sagaID string) (*domain.Saga, error) {
	saga, err := s.GetSaga(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	txn, err := s.GetTransfer(ctx, saga.TransactionID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, lockKey(txn.IdempotencyKey))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// re-read under the lock
	if saga, err = s.GetSaga(ctx, sagaID); err != nil {
		return nil, err
	}
	if txn, err = s.GetTransfer(ctx, saga.TransactionID); err != nil {
		return nil, err
	}
	if !saga.NeedsReconciliation {
		return nil, fmt.Errorf("%w: saga %s is %s and not flagged for reconciliation", apperrors.ErrInvalidTransition, sagaID, saga.Status)
	}

	reason := txn.FailureReason
	if reason == "" {
		reason = "transfer could not be completed"
	}
	if err := s.compensate(context.WithoutCancel(ctx), txn, saga, compensationFor(saga.CurrentStep), reason); err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Saga reconciliation attempted",
		slog.String("saga_id", sagaID),
		slog.String("status", string(saga.Status)),
		slog.Bool("needs_reconciliation", saga.NeedsReconciliation))
	return saga, nil
}

// compensationFor returns the ledger call that undoes the saga's effect on the source
// account when it stopped at step.
func compensationFor(step domain.SagaStep) domain.LedgerOperation {
	switch step {
	case domain.StepDebited, domain.StepCrediting, domain.StepCompleted:
		return domain.OpCredit
	default:
		return domain.OpRelease
	}
}
