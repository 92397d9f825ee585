package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/platform/metrics"
)

// stepOutcome is what the orchestrator learned about one ledger call.
type stepOutcome int

const (
	outcomeApplied  stepOutcome = iota
	outcomeRejected             // definitely not applied
	outcomeUnknown              // may or may not have been applied; the saga is parked
)

// sagaRunner holds the saga state machine shared by the transfer service and the recovery sweep.
type sagaRunner struct {
	BaseService
	repo   portsrepo.TransferRepositoryFacade
	ledger portssvc.LedgerClient
	locker portssvc.IdempotencyLocker
	events portssvc.EventPublisher
}

// TransferOption is a functional option for configuring the transfer service and the saga recoverer
type TransferOption func(*sagaRunner)

// WithIdempotencyLocker serializes requests sharing an idempotency key.
func WithIdempotencyLocker(locker portssvc.IdempotencyLocker) TransferOption {
	return func(r *sagaRunner) {
		r.locker = locker
	}
}

// WithEventPublisher sets where compliance events go.
func WithEventPublisher(publisher portssvc.EventPublisher) TransferOption {
	return func(r *sagaRunner) {
		r.events = publisher
	}
}

// WithTransferClock overrides the time source.
func WithTransferClock(clock func() time.Time) TransferOption {
	return func(r *sagaRunner) {
		r.clock = clock
	}
}

func newSagaRunner(repo portsrepo.TransferRepositoryFacade, ledger portssvc.LedgerClient, options ...TransferOption) *sagaRunner {
	r := &sagaRunner{repo: repo, ledger: ledger}
	for _, option := range options {
		option(r)
	}
	return r
}

func lockKey(idempotencyKey string) string {
	return "transfer:" + idempotencyKey
}

// lock takes the idempotency lock for key. Without a locker the store's unique
// constraint on the idempotency key is the only guard.
func (r *sagaRunner) lock(ctx context.Context, key string) (func(), error) {
	if r.locker == nil {
		return func() {}, nil
	}
	unlock, err := r.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	return unlock, nil
}

// drive advances the saga from its current step until it reaches a terminal state,
// or parks it on an in-flight step when a ledger outcome cannot be established.
func (r *sagaRunner) drive(ctx context.Context, txn *domain.Transaction, saga *domain.Saga) error {
	for {
		switch saga.CurrentStep {
		case domain.StepStarted:
			txn.Status = domain.TransactionProcessing
			txn.LastUpdatedAt = r.Now()
			saga.Advance(domain.StepReserving, r.Now())
			if err := r.repo.FinalizeTransfer(ctx, *saga, *txn); err != nil {
				return r.persistFailed(ctx, saga, err)
			}

		case domain.StepReserving:
			outcome, err := r.runStep(ctx, saga, domain.OpReserve, saga.Payload.SourceAccountID, "")
			switch outcome {
			case outcomeApplied:
				if err := r.advance(ctx, saga, domain.StepReserved); err != nil {
					return err
				}
			case outcomeRejected:
				// nothing was applied yet, so nothing to compensate
				return r.fail(ctx, txn, saga, failureReason(domain.OpReserve, err), err)
			default:
				return r.park(ctx, saga, err)
			}

		case domain.StepReserved:
			if err := r.advance(ctx, saga, domain.StepDebiting); err != nil {
				return err
			}

		case domain.StepDebiting:
			outcome, err := r.runStep(ctx, saga, domain.OpDebit, saga.Payload.SourceAccountID, domain.ReasonTransfer)
			switch outcome {
			case outcomeApplied:
				if err := r.advance(ctx, saga, domain.StepDebited); err != nil {
					return err
				}
			case outcomeRejected:
				return r.compensate(ctx, txn, saga, domain.OpRelease, failureReason(domain.OpDebit, err))
			default:
				return r.park(ctx, saga, err)
			}

		case domain.StepDebited:
			if err := r.advance(ctx, saga, domain.StepCrediting); err != nil {
				return err
			}

		case domain.StepCrediting:
			outcome, err := r.runStep(ctx, saga, domain.OpCredit, saga.Payload.DestinationAccountID, domain.ReasonTransfer)
			switch outcome {
			case outcomeApplied:
				return r.complete(ctx, txn, saga)
			case outcomeRejected:
				return r.compensate(ctx, txn, saga, domain.OpCredit, failureReason(domain.OpCredit, err))
			default:
				return r.park(ctx, saga, err)
			}

		case domain.StepCompleted:
			if txn.Status == domain.TransactionCompleted {
				return nil
			}
			return r.complete(ctx, txn, saga)

		default:
			return fmt.Errorf("%w: saga %s has unknown step %q", apperrors.ErrInternal, saga.SagaID, saga.CurrentStep)
		}
	}
}

// runStep performs one ledger operation for the saga. When the call fails for any reason other
// than a business rejection the ledger is asked whether the operation was applied.
func (r *sagaRunner) runStep(ctx context.Context, saga *domain.Saga, op domain.LedgerOperation, accountID, reason string) (stepOutcome, error) {
	req := domain.LedgerRequest{
		AccountID:     accountID,
		Amount:        saga.Payload.Amount,
		CorrelationID: saga.TransactionID,
		Reason:        reason,
	}

	_, err := r.callLedger(ctx, op, req)
	if err == nil {
		return outcomeApplied, nil
	}
	if apperrors.IsBusinessRejection(err) {
		return outcomeRejected, err
	}

	r.LogWarn(ctx, err, "Ledger call outcome unknown, querying ledger",
		slog.String("saga_id", saga.SagaID),
		slog.String("operation", string(op)),
		slog.String("account_id", accountID))
	return r.queryOutcome(ctx, op, accountID, saga.TransactionID, err)
}

// queryOutcome asks the ledger whether op was applied for the correlation id.
func (r *sagaRunner) queryOutcome(ctx context.Context, op domain.LedgerOperation, accountID, correlationID string, cause error) (stepOutcome, error) {
	_, err := r.ledger.FindOperation(ctx, accountID, correlationID, op)
	switch {
	case err == nil:
		return outcomeApplied, nil
	case errors.Is(err, apperrors.ErrNotFound):
		if cause == nil {
			cause = err
		}
		return outcomeRejected, cause
	default:
		if cause == nil {
			return outcomeUnknown, err
		}
		return outcomeUnknown, fmt.Errorf("%w (re-query failed: %v)", cause, err)
	}
}

func (r *sagaRunner) callLedger(ctx context.Context, op domain.LedgerOperation, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	switch op {
	case domain.OpReserve:
		return r.ledger.Reserve(ctx, req)
	case domain.OpRelease:
		return r.ledger.Release(ctx, req)
	case domain.OpDebit:
		return r.ledger.Debit(ctx, req)
	case domain.OpCredit:
		return r.ledger.Credit(ctx, req)
	}
	return nil, fmt.Errorf("%w: unknown ledger operation %q", apperrors.ErrValidation, op)
}

func (r *sagaRunner) advance(ctx context.Context, saga *domain.Saga, step domain.SagaStep) error {
	saga.Advance(step, r.Now())
	if err := r.repo.SaveSagaProgress(ctx, *saga); err != nil {
		return r.persistFailed(ctx, saga, err)
	}
	return nil
}

// park leaves the saga on its in-flight step for the recovery sweep.
func (r *sagaRunner) park(ctx context.Context, saga *domain.Saga, cause error) error {
	saga.ErrorDetail = cause.Error()
	saga.LastUpdatedAt = r.Now()
	r.LogWarn(ctx, cause, "Saga parked with unknown ledger outcome",
		slog.String("saga_id", saga.SagaID),
		slog.String("transaction_id", saga.TransactionID),
		slog.String("step", string(saga.CurrentStep)))
	if err := r.repo.SaveSagaProgress(ctx, *saga); err != nil {
		return r.persistFailed(ctx, saga, err)
	}
	return nil
}

func (r *sagaRunner) persistFailed(ctx context.Context, saga *domain.Saga, err error) error {
	r.LogError(ctx, err, "Failed to persist saga progress",
		slog.String("saga_id", saga.SagaID),
		slog.String("step", string(saga.CurrentStep)))
	return apperrors.NewAppError(500, "failed to persist saga progress", err)
}

// fail ends a saga that never moved any funds.
func (r *sagaRunner) fail(ctx context.Context, txn *domain.Transaction, saga *domain.Saga, reason string, cause error) error {
	now := r.Now()
	detail := reason
	if cause != nil {
		detail = cause.Error()
	}
	saga.Finish(domain.SagaFailed, detail, now)
	txn.Status = domain.TransactionFailed
	txn.FailureReason = reason
	txn.LastUpdatedAt = now

	if err := r.repo.FinalizeTransfer(ctx, *saga, *txn); err != nil {
		return r.persistFailed(ctx, saga, err)
	}

	metrics.TransfersTotal.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
	r.LogInfo(ctx, "Transfer failed",
		slog.String("transaction_id", txn.TransactionID),
		slog.String("reason", reason))
	r.publish(ctx, domain.EventTransferFailed, domain.EntityTypeTransaction, txn.TransactionID, map[string]string{
		"reason":          reason,
		"referenceNumber": txn.ReferenceNumber,
	})
	return nil
}

// compensate undoes what the saga applied on the source account. compensation is OpRelease
// when only a reservation is held and OpCredit when the source was already debited.
func (r *sagaRunner) compensate(ctx context.Context, txn *domain.Transaction, saga *domain.Saga, compensation domain.LedgerOperation, reason string) error {
	saga.Status = domain.SagaCompensating
	saga.LastUpdatedAt = r.Now()
	if err := r.repo.SaveSagaProgress(ctx, *saga); err != nil {
		return r.persistFailed(ctx, saga, err)
	}

	err := r.runCompensation(ctx, saga, compensation)
	now := r.Now()
	txn.Status = domain.TransactionFailed
	txn.FailureReason = reason
	txn.LastUpdatedAt = now

	if err != nil {
		saga.FlagForReconciliation(fmt.Sprintf("compensation %s failed: %v", compensation, err), now)
		if perr := r.repo.FinalizeTransfer(ctx, *saga, *txn); perr != nil {
			return r.persistFailed(ctx, saga, perr)
		}
		metrics.SagaCompensationsTotal.WithLabelValues("reconciliation_required").Inc()
		metrics.TransfersTotal.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
		r.LogError(ctx, err, "Compensation failed, saga needs reconciliation",
			slog.String("saga_id", saga.SagaID),
			slog.String("transaction_id", txn.TransactionID),
			slog.String("compensation", string(compensation)))
		r.publish(ctx, domain.EventReconciliationNeeded, domain.EntityTypeSaga, saga.SagaID, map[string]string{
			"transactionID": txn.TransactionID,
			"step":          string(saga.CurrentStep),
		})
		r.publish(ctx, domain.EventTransferFailed, domain.EntityTypeTransaction, txn.TransactionID, map[string]string{
			"reason":          reason,
			"referenceNumber": txn.ReferenceNumber,
		})
		return nil
	}

	saga.Finish(domain.SagaCompensated, reason, now)
	if perr := r.repo.FinalizeTransfer(ctx, *saga, *txn); perr != nil {
		return r.persistFailed(ctx, saga, perr)
	}
	metrics.SagaCompensationsTotal.WithLabelValues("compensated").Inc()
	metrics.TransfersTotal.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
	r.LogInfo(ctx, "Transfer compensated",
		slog.String("saga_id", saga.SagaID),
		slog.String("transaction_id", txn.TransactionID),
		slog.String("compensation", string(compensation)),
		slog.String("reason", reason))
	r.publish(ctx, domain.EventTransferFailed, domain.EntityTypeTransaction, txn.TransactionID, map[string]string{
		"reason":          reason,
		"referenceNumber": txn.ReferenceNumber,
	})
	r.publish(ctx, domain.EventTransferCompensated, domain.EntityTypeSaga, saga.SagaID, map[string]string{
		"transactionID": txn.TransactionID,
		"compensation":  string(compensation),
	})
	return nil
}

// runCompensation applies the compensating ledger call and returns nil once the source
// account is known to be restored.
func (r *sagaRunner) runCompensation(ctx context.Context, saga *domain.Saga, compensation domain.LedgerOperation) error {
	req := domain.LedgerRequest{
		AccountID:     saga.Payload.SourceAccountID,
		Amount:        saga.Payload.Amount,
		CorrelationID: saga.TransactionID,
	}
	if compensation == domain.OpCredit {
		req.Reason = domain.ReasonTransferReversal
	}

	_, err := r.callLedger(ctx, compensation, req)
	switch {
	case err == nil:
		return nil

	case compensation == domain.OpRelease && errors.Is(err, apperrors.ErrNoSuchReservation):
		// The reservation is gone. Either it was released already, or a debit we believed
		// failed consumed it, in which case the debit has to be reversed instead.
		outcome, qerr := r.queryOutcome(ctx, domain.OpDebit, req.AccountID, req.CorrelationID, nil)
		switch outcome {
		case outcomeRejected:
			return nil
		case outcomeApplied:
			return r.runCompensation(ctx, saga, domain.OpCredit)
		default:
			return qerr
		}

	case apperrors.IsBusinessRejection(err):
		return err

	default:
		outcome, qerr := r.queryOutcome(ctx, compensation, req.AccountID, req.CorrelationID, err)
		if outcome == outcomeApplied {
			return nil
		}
		return qerr
	}
}

// complete records a successful transfer. A completed reversal also marks the transfer it reverses.
func (r *sagaRunner) complete(ctx context.Context, txn *domain.Transaction, saga *domain.Saga) error {
	now := r.Now()
	saga.Advance(domain.StepCompleted, now)
	saga.ErrorDetail = ""
	txn.Status = domain.TransactionCompleted
	txn.CompletedAt = &now
	txn.LastUpdatedAt = now

	toSave := []domain.Transaction{*txn}
	var original *domain.Transaction
	if txn.Type == domain.TransactionTypeReversal && txn.ReversalOfID != nil {
		found, err := r.repo.FindTransactionByID(ctx, *txn.ReversalOfID)
		if err != nil {
			return r.persistFailed(ctx, saga, err)
		}
		if found.Status.CanTransitionTo(domain.TransactionReversed) {
			found.Status = domain.TransactionReversed
			reversedBy := txn.TransactionID
			found.ReversedByID = &reversedBy
			found.LastUpdatedAt = now
			toSave = append(toSave, *found)
			original = found
		}
	}

	if err := r.repo.FinalizeTransfer(ctx, *saga, toSave...); err != nil {
		return r.persistFailed(ctx, saga, err)
	}

	metrics.TransfersTotal.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
	r.LogInfo(ctx, "Transfer completed",
		slog.String("transaction_id", txn.TransactionID),
		slog.String("reference_number", txn.ReferenceNumber),
		slog.String("type", string(txn.Type)))
	r.publish(ctx, domain.EventTransferCompleted, domain.EntityTypeTransaction, txn.TransactionID, map[string]string{
		"referenceNumber":      txn.ReferenceNumber,
		"sourceAccountID":      txn.SourceAccountID,
		"destinationAccountID": txn.DestinationAccountID,
		"amount":               txn.Amount.String(),
		"currency":             txn.CurrencyCode,
	})
	if original != nil {
		r.publish(ctx, domain.EventTransferReversed, domain.EntityTypeTransaction, original.TransactionID, map[string]string{
			"reversedByID": txn.TransactionID,
		})
	}
	return nil
}

// publish hands a compliance event to the publisher. Failures are logged and counted only.
func (r *sagaRunner) publish(ctx context.Context, eventType, entityType, entityID string, metadata map[string]string) {
	if r.events == nil {
		return
	}
	event := domain.ComplianceEvent{
		EntityType: entityType,
		EntityID:   entityID,
		EventType:  eventType,
		Metadata:   metadata,
		OccurredAt: r.Now(),
	}
	if err := r.events.Publish(ctx, event); err != nil {
		metrics.CompliancePublishFailuresTotal.Inc()
		r.LogWarn(ctx, err, "Failed to publish compliance event",
			slog.String("event_type", eventType),
			slog.String("entity_id", entityID))
	}
}

// failureReason is the customer facing explanation of a failed step. Internal saga detail stays out of it.
func failureReason(op domain.LedgerOperation, err error) string {
	party := "source"
	if op == domain.OpCredit {
		party = "destination"
	}
	switch apperrors.Classify(err) {
	case apperrors.KindInsufficientFunds:
		return "insufficient funds in source account"
	case apperrors.KindAccountInactive:
		return party + " account is not active"
	case apperrors.KindNotFound:
		return party + " account not found"
	case apperrors.KindValidation:
		return "transfer rejected by ledger"
	case apperrors.KindTransient:
		return "ledger unavailable"
	default:
		return "transfer could not be completed"
	}
}
