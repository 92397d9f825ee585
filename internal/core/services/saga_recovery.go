package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/platform/metrics"
)

const (
	defaultRecoveryStaleAfter = time.Minute
	defaultRecoveryBatchSize  = 50
)

// errStillUnknown is returned when the ledger cannot yet tell whether a parked step was applied.
var errStillUnknown = errors.New("ledger outcome still unknown")

// sagaRecoverer finishes sagas left on a non-terminal step, for example by a crash or a parked
// ledger call. It never moves a saga forward past a step it cannot prove: it compensates, and only
// completes a transfer whose final credit is already on the ledger.
type sagaRecoverer struct {
	*sagaRunner
	staleAfter time.Duration
	batchSize  int
}

// NewSagaRecoverer creates the recovery sweep.
func NewSagaRecoverer(repo portsrepo.TransferRepositoryFacade, ledger portssvc.LedgerClient, staleAfter time.Duration, batchSize int, options ...TransferOption) portssvc.SagaRecoverer {
	if staleAfter <= 0 {
		staleAfter = defaultRecoveryStaleAfter
	}
	if batchSize <= 0 {
		batchSize = defaultRecoveryBatchSize
	}
	return &sagaRecoverer{
		sagaRunner: newSagaRunner(repo, ledger, options...),
		staleAfter: staleAfter,
		batchSize:  batchSize,
	}
}

var _ portssvc.SagaRecoverer = (*sagaRecoverer)(nil)

func (r *sagaRecoverer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.LogInfo(ctx, "Saga recovery loop started",
		slog.Duration("interval", interval),
		slog.Duration("stale_after", r.staleAfter))
	for {
		select {
		case <-ctx.Done():
			r.LogInfo(ctx, "Saga recovery loop stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RecoverStale(ctx); err != nil {
				r.LogError(ctx, err, "Saga recovery sweep failed")
			}
		}
	}
}

func (r *sagaRecoverer) RecoverStale(ctx context.Context) (int, error) {
	notFlagged := false
	sagas, err := r.repo.ListSagas(ctx, portsrepo.SagaFilter{
		Statuses:            []domain.SagaStatus{domain.SagaStarted, domain.SagaInProgress, domain.SagaCompensating},
		UpdatedBefore:       r.Now().Add(-r.staleAfter),
		NeedsReconciliation: &notFlagged,
		Limit:               r.batchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("listing stale sagas: %w", err)
	}

	handled := 0
	for _, saga := range sagas {
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}
		ok, err := r.recoverOne(ctx, saga.SagaID)
		if err != nil {
			r.LogWarn(ctx, err, "Could not recover saga",
				slog.String("saga_id", saga.SagaID),
				slog.String("step", string(saga.CurrentStep)))
			continue
		}
		if ok {
			metrics.SagasRecoveredTotal.WithLabelValues(string(saga.CurrentStep)).Inc()
			handled++
		}
	}
	if handled > 0 {
		r.LogInfo(ctx, "Recovered stale sagas", slog.Int("count", handled))
	}
	return handled, nil
}

// recoverOne takes the saga's idempotency lock, re-reads it and settles it.
// It reports false when another worker already moved the saga on.
func (r *sagaRecoverer) recoverOne(ctx context.Context, sagaID string) (bool, error) {
	saga, err := r.repo.FindSagaByID(ctx, sagaID)
	if err != nil {
		return false, err
	}
	txn, err := r.repo.FindTransactionByID(ctx, saga.TransactionID)
	if err != nil {
		return false, err
	}

	unlock, err := r.lock(ctx, lockKey(txn.IdempotencyKey))
	if err != nil {
		return false, err
	}
	defer unlock()

	if saga, err = r.repo.FindSagaByID(ctx, sagaID); err != nil {
		return false, err
	}
	if txn, err = r.repo.FindTransactionByID(ctx, saga.TransactionID); err != nil {
		return false, err
	}
	if saga.Status.IsTerminal() || saga.NeedsReconciliation || saga.LastUpdatedAt.After(r.Now().Add(-r.staleAfter)) {
		return false, nil
	}

	r.LogInfo(ctx, "Recovering stale saga",
		slog.String("saga_id", saga.SagaID),
		slog.String("transaction_id", saga.TransactionID),
		slog.String("step", string(saga.CurrentStep)),
		slog.String("status", string(saga.Status)))

	if err := r.settle(context.WithoutCancel(ctx), txn, saga); err != nil {
		return false, err
	}
	return true, nil
}

const interruptedReason = "transfer interrupted and rolled back"

// settle dispatches on the step the saga was left on.
func (r *sagaRecoverer) settle(ctx context.Context, txn *domain.Transaction, saga *domain.Saga) error {
	if saga.Status == domain.SagaCompensating {
		reason := txn.FailureReason
		if reason == "" {
			reason = interruptedReason
		}
		return r.compensate(ctx, txn, saga, compensationFor(saga.CurrentStep), reason)
	}
	if txn.Status == domain.TransactionPending {
		txn.Status = domain.TransactionProcessing
	}

	src := saga.Payload.SourceAccountID
	switch saga.CurrentStep {
	case domain.StepStarted:
		// RESERVING is persisted before the reserve call, so nothing reached the ledger
		return r.fail(ctx, txn, saga, interruptedReason, nil)

	case domain.StepReserving:
		switch outcome, err := r.queryOutcome(ctx, domain.OpReserve, src, saga.TransactionID, nil); outcome {
		case outcomeApplied:
			return r.compensate(ctx, txn, saga, domain.OpRelease, interruptedReason)
		case outcomeRejected:
			return r.fail(ctx, txn, saga, interruptedReason, nil)
		default:
			return fmt.Errorf("%w: %w", errStillUnknown, err)
		}

	case domain.StepReserved:
		return r.compensate(ctx, txn, saga, domain.OpRelease, interruptedReason)

	case domain.StepDebiting:
		switch outcome, err := r.queryOutcome(ctx, domain.OpDebit, src, saga.TransactionID, nil); outcome {
		case outcomeApplied:
			saga.CurrentStep = domain.StepDebited
			return r.compensate(ctx, txn, saga, domain.OpCredit, interruptedReason)
		case outcomeRejected:
			return r.compensate(ctx, txn, saga, domain.OpRelease, interruptedReason)
		default:
			return fmt.Errorf("%w: %w", errStillUnknown, err)
		}

	case domain.StepDebited:
		return r.compensate(ctx, txn, saga, domain.OpCredit, interruptedReason)

	case domain.StepCrediting:
		dst := saga.Payload.DestinationAccountID
		switch outcome, err := r.queryOutcome(ctx, domain.OpCredit, dst, saga.TransactionID, nil); outcome {
		case outcomeApplied:
			return r.complete(ctx, txn, saga)
		case outcomeRejected:
			return r.compensate(ctx, txn, saga, domain.OpCredit, interruptedReason)
		default:
			return fmt.Errorf("%w: %w", errStillUnknown, err)
		}

	case domain.StepCompleted:
		return r.complete(ctx, txn, saga)
	}
	return fmt.Errorf("saga %s has unknown step %q", saga.SagaID, saga.CurrentStep)
}
