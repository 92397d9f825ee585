package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/core/services"
	"github.com/SscSPs/funds_transfer_app/internal/dto"
	"github.com/SscSPs/funds_transfer_app/internal/repositories/database/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

var errLostResponse = fmt.Errorf("%w: %w: connection reset by peer", apperrors.ErrTransient, apperrors.ErrOutcomeUnknown)

// --- Fault injecting ledger client ---

type fault struct {
	accountID string // empty matches any account
	err       error
	apply     bool // apply the operation before failing, like a lost response
}

type faultyLedger struct {
	portssvc.AccountLedger
	mu      sync.Mutex
	faults  map[domain.LedgerOperation][]fault
	findErr error
}

func newFaultyLedger(ledger portssvc.AccountLedger) *faultyLedger {
	return &faultyLedger{AccountLedger: ledger, faults: map[domain.LedgerOperation][]fault{}}
}

func (f *faultyLedger) inject(op domain.LedgerOperation, ft fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op] = append(f.faults[op], ft)
}

func (f *faultyLedger) setFindErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findErr = err
}

func (f *faultyLedger) take(op domain.LedgerOperation, accountID string) (fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ft := range f.faults[op] {
		if ft.accountID == "" || ft.accountID == accountID {
			f.faults[op] = append(f.faults[op][:i], f.faults[op][i+1:]...)
			return ft, true
		}
	}
	return fault{}, false
}

func (f *faultyLedger) call(ctx context.Context, op domain.LedgerOperation, req domain.LedgerRequest,
	fn func(context.Context, domain.LedgerRequest) (*domain.LedgerResult, error)) (*domain.LedgerResult, error) {
	if ft, ok := f.take(op, req.AccountID); ok {
		if ft.apply {
			if _, err := fn(ctx, req); err != nil {
				return nil, err
			}
		}
		return nil, ft.err
	}
	return fn(ctx, req)
}

func (f *faultyLedger) Reserve(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return f.call(ctx, domain.OpReserve, req, f.AccountLedger.Reserve)
}

func (f *faultyLedger) Release(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return f.call(ctx, domain.OpRelease, req, f.AccountLedger.Release)
}

func (f *faultyLedger) Debit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return f.call(ctx, domain.OpDebit, req, f.AccountLedger.Debit)
}

func (f *faultyLedger) Credit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return f.call(ctx, domain.OpCredit, req, f.AccountLedger.Credit)
}

func (f *faultyLedger) FindOperation(ctx context.Context, accountID, correlationID string, op domain.LedgerOperation) (*domain.LedgerResult, error) {
	f.mu.Lock()
	err := f.findErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.AccountLedger.FindOperation(ctx, accountID, correlationID, op)
}

// --- Recording event publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ComplianceEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.ComplianceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

// --- Test Suite ---

type TransferServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	repo      *memory.TransferRepository
	ledger    portssvc.AccountLedger
	client    *faultyLedger
	events    *recordingPublisher
	service   portssvc.TransferSvcFacade
	recoverer portssvc.SagaRecoverer
}

func (suite *TransferServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	suite.repo = memory.NewTransferRepository()
	suite.ledger = services.NewLedgerService(memory.NewLedgerRepository())
	suite.client = newFaultyLedger(suite.ledger)
	suite.events = &recordingPublisher{}

	clock := func() time.Time { return suite.now }
	suite.service = services.NewTransferService(suite.repo, suite.client,
		services.WithEventPublisher(suite.events),
		services.WithTransferClock(clock))
	suite.recoverer = services.NewSagaRecoverer(suite.repo, suite.client, time.Minute, 10,
		services.WithEventPublisher(suite.events),
		services.WithTransferClock(clock))
}

func TestTransferServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TransferServiceTestSuite))
}

// openAccount creates an ACTIVE USD account funded with balance.
func (suite *TransferServiceTestSuite) openAccount(balance string) string {
	acc, err := suite.ledger.OpenAccount(suite.ctx, uuid.NewString(), "USD")
	suite.Require().NoError(err)
	_, err = suite.ledger.ChangeAccountStatus(suite.ctx, acc.AccountID, domain.AccountActive)
	suite.Require().NoError(err)

	amount := decimal.RequireFromString(balance)
	if amount.IsPositive() {
		_, err = suite.ledger.Credit(suite.ctx, domain.LedgerRequest{
			AccountID:     acc.AccountID,
			Amount:        amount,
			CorrelationID: "deposit-" + uuid.NewString(),
			Reason:        domain.ReasonDeposit,
		})
		suite.Require().NoError(err)
	}
	return acc.AccountID
}

func (suite *TransferServiceTestSuite) assertBalance(accountID, balance, available string) {
	acc, err := suite.ledger.GetAccount(suite.ctx, accountID)
	suite.Require().NoError(err)
	suite.True(decimal.RequireFromString(balance).Equal(acc.Balance), "balance of %s: want %s, got %s", accountID, balance, acc.Balance)
	suite.True(decimal.RequireFromString(available).Equal(acc.AvailableBalance), "available of %s: want %s, got %s", accountID, available, acc.AvailableBalance)
}

func (suite *TransferServiceTestSuite) command(key, src, dst, amount string) dto.TransferCommand {
	return dto.TransferCommand{
		IdempotencyKey:       key,
		SourceAccountID:      src,
		DestinationAccountID: dst,
		Amount:               decimal.RequireFromString(amount),
		CurrencyCode:         "USD",
	}
}

func (suite *TransferServiceTestSuite) sagaFor(transactionID string) *domain.Saga {
	saga, err := suite.service.GetSagaByTransactionID(suite.ctx, transactionID)
	suite.Require().NoError(err)
	return saga
}

// --- Test Cases ---

func (suite *TransferServiceTestSuite) TestExecuteTransfer_Completes() {
	a := suite.openAccount("1000")
	b := suite.openAccount("200")

	result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("k-complete", a, b, "500"))

	suite.Require().NoError(err)
	suite.Equal(domain.TransactionCompleted, result.Status)
	suite.False(result.Replayed)
	suite.Regexp(`^TRF-20260314-[A-Z0-9]{10}$`, result.ReferenceNumber)
	suite.Require().NotNil(result.CompletedAt)
	suite.assertBalance(a, "500", "500")
	suite.assertBalance(b, "700", "700")

	saga := suite.sagaFor(result.TransactionID)
	suite.Equal(domain.SagaCompleted, saga.Status)
	suite.Equal(domain.StepCompleted, saga.CurrentStep)
	suite.Contains(suite.events.types(), domain.EventTransferCompleted)

	history, total, err := suite.ledger.ListHistory(suite.ctx, a, 0, 10)
	suite.Require().NoError(err)
	suite.Equal(3, total) // deposit, reserve, debit
	suite.Equal(domain.OpDebit, history[0].Operation)
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_InsufficientFundsFailsAtReserve() {
	a := suite.openAccount("500")
	b := suite.openAccount("0")

	result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("k-poor", a, b, "2000"))

	suite.Require().NoError(err)
	suite.Equal(domain.TransactionFailed, result.Status)
	suite.Equal("insufficient funds in source account", result.FailureReason)
	suite.assertBalance(a, "500", "500")
	suite.assertBalance(b, "0", "0")

	saga := suite.sagaFor(result.TransactionID)
	suite.Equal(domain.SagaFailed, saga.Status)
	suite.Equal(domain.StepReserving, saga.CurrentStep)
	suite.Contains(suite.events.types(), domain.EventTransferFailed)
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_CreditFailureIsCompensated() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")
	suite.client.inject(domain.OpCredit, fault{accountID: b, err: fmt.Errorf("%w: closed", apperrors.ErrAccountInactive)})

	result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("k-credit-fails", a, b, "500"))

	suite.Require().NoError(err)
	suite.Equal(domain.TransactionFailed, result.Status)
	suite.Equal("destination account is not active", result.FailureReason)
	suite.assertBalance(a, "1000", "1000")
	suite.assertBalance(b, "0", "0")

	saga := suite.sagaFor(result.TransactionID)
	suite.Equal(domain.SagaCompensated, saga.Status)
	suite.False(saga.NeedsReconciliation)
	suite.Contains(suite.events.types(), domain.EventTransferCompensated)

	history, _, err := suite.ledger.ListHistory(suite.ctx, a, 0, 10)
	suite.Require().NoError(err)
	suite.Equal(domain.OpCredit, history[0].Operation)
	suite.Equal(domain.ReasonTransferReversal, history[0].Reason)
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_DebitFailureReleasesReservation() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")
	suite.client.inject(domain.OpDebit, fault{err: fmt.Errorf("%w: suspended", apperrors.ErrAccountInactive)})

	result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("k-debit-fails", a, b, "300"))

	suite.Require().NoError(err)
	suite.Equal(domain.TransactionFailed, result.Status)
	suite.assertBalance(a, "1000", "1000")

	saga := suite.sagaFor(result.TransactionID)
	suite.Equal(domain.SagaCompensated, saga.Status)
	suite.Equal(domain.StepDebiting, saga.CurrentStep)
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_IdempotentReplay() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")

	first, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("K1", a, b, "100"))
	suite.Require().NoError(err)
	second, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("K1", a, b, "100"))
	suite.Require().NoError(err)

	suite.Equal(first.TransactionID, second.TransactionID)
	suite.Equal(first.ReferenceNumber, second.ReferenceNumber)
	suite.True(second.Replayed)
	suite.assertBalance(a, "900", "900")
	suite.assertBalance(b, "100", "100")
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_KeyReusedWithDifferentPayload() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")

	_, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("K2", a, b, "100"))
	suite.Require().NoError(err)
	result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("K2", a, b, "150"))

	suite.Nil(result)
	suite.ErrorIs(err, apperrors.ErrIdempotencyMismatch)
	suite.assertBalance(a, "900", "900")
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_ConcurrentDuplicateKeyAppliesOnce() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("K-race", a, b, "100"))
			errs[i] = err
			if result != nil {
				ids[i] = result.TransactionID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		suite.Require().NoError(errs[i])
		suite.Equal(ids[0], ids[i])
	}
	suite.assertBalance(a, "900", "900")
	suite.assertBalance(b, "100", "100")
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_ConcurrentTransfersNeverOverdraw() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")

	const callers = 20
	statuses := make([]domain.TransactionStatus, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command(fmt.Sprintf("K-par-%d", i), a, b, "100"))
			if err == nil {
				statuses[i] = result.Status
			}
		}(i)
	}
	wg.Wait()

	completed := 0
	for _, status := range statuses {
		if status == domain.TransactionCompleted {
			completed++
		} else {
			suite.Equal(domain.TransactionFailed, status)
		}
	}
	suite.Equal(10, completed)
	suite.assertBalance(a, "0", "0")
	suite.assertBalance(b, "1000", "1000")
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_LostResponseResolvedByQuery() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")
	suite.client.inject(domain.OpCredit, fault{accountID: b, err: errLostResponse, apply: true})

	result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("k-lost", a, b, "250"))

	suite.Require().NoError(err)
	suite.Equal(domain.TransactionCompleted, result.Status)
	suite.assertBalance(a, "750", "750")
	suite.assertBalance(b, "250", "250")
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_UnknownOutcomeParksThenRecovers() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")
	suite.client.inject(domain.OpCredit, fault{accountID: b, err: errLostResponse})
	suite.client.setFindErr(fmt.Errorf("%w: ledger down", apperrors.ErrTransient))

	result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("k-parked", a, b, "500"))

	suite.Require().NoError(err)
	suite.Equal(domain.TransactionProcessing, result.Status)
	saga := suite.sagaFor(result.TransactionID)
	suite.Equal(domain.StepCrediting, saga.CurrentStep)
	suite.Equal(domain.SagaInProgress, saga.Status)
	suite.assertBalance(a, "500", "500")

	// too fresh for the sweep
	recovered, err := suite.recoverer.RecoverStale(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(0, recovered)

	suite.client.setFindErr(nil)
	suite.now = suite.now.Add(2 * time.Minute)
	recovered, err = suite.recoverer.RecoverStale(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, recovered)

	txn, err := suite.service.GetTransfer(suite.ctx, result.TransactionID)
	suite.Require().NoError(err)
	suite.Equal(domain.TransactionFailed, txn.Status)
	suite.Equal(domain.SagaCompensated, suite.sagaFor(result.TransactionID).Status)
	suite.assertBalance(a, "1000", "1000")
	suite.assertBalance(b, "0", "0")
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_FailedCompensationIsFlaggedAndReconciled() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")
	suite.client.inject(domain.OpCredit, fault{accountID: b, err: fmt.Errorf("%w: closed", apperrors.ErrAccountInactive)})
	suite.client.inject(domain.OpCredit, fault{accountID: a, err: fmt.Errorf("%w: closed", apperrors.ErrAccountInactive)})

	result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("k-stuck", a, b, "400"))

	suite.Require().NoError(err)
	suite.Equal(domain.TransactionFailed, result.Status)
	saga := suite.sagaFor(result.TransactionID)
	suite.Equal(domain.SagaCompensating, saga.Status)
	suite.True(saga.NeedsReconciliation)
	suite.NotEmpty(saga.ErrorDetail)
	suite.Contains(suite.events.types(), domain.EventReconciliationNeeded)
	suite.assertBalance(a, "600", "600")

	flagged, err := suite.service.ListSagasNeedingReconciliation(suite.ctx, 10)
	suite.Require().NoError(err)
	suite.Require().Len(flagged, 1)
	suite.Equal(saga.SagaID, flagged[0].SagaID)

	// the sweep leaves flagged sagas to the operator
	suite.now = suite.now.Add(2 * time.Minute)
	recovered, err := suite.recoverer.RecoverStale(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(0, recovered)

	reconciled, err := suite.service.ReconcileSaga(suite.ctx, saga.SagaID)
	suite.Require().NoError(err)
	suite.Equal(domain.SagaCompensated, reconciled.Status)
	suite.False(reconciled.NeedsReconciliation)
	suite.assertBalance(a, "1000", "1000")

	_, err = suite.service.ReconcileSaga(suite.ctx, saga.SagaID)
	suite.ErrorIs(err, apperrors.ErrInvalidTransition)
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_RejectsInvalidCommands() {
	a := suite.openAccount("100")
	b := suite.openAccount("0")

	tests := []struct {
		name string
		cmd  dto.TransferCommand
	}{
		{"missing key", suite.command("", a, b, "10")},
		{"source not a uuid", suite.command("k", "acc-1", b, "10")},
		{"same account", suite.command("k", a, a, "10")},
		{"zero amount", suite.command("k", a, b, "0")},
		{"negative amount", suite.command("k", a, b, "-5")},
		{"more than four decimals", suite.command("k", a, b, "1.00005")},
		{"rounds to zero", suite.command("k", a, b, "0.00004")},
		{"too large", suite.command("k", a, b, "10000000000000000")},
		{"bad currency", func() dto.TransferCommand {
			cmd := suite.command("k", a, b, "10")
			cmd.CurrencyCode = "US"
			return cmd
		}()},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			result, err := suite.service.ExecuteTransfer(suite.ctx, tt.cmd)
			suite.Nil(result)
			suite.ErrorIs(err, apperrors.ErrValidation)
		})
	}
	suite.assertBalance(a, "100", "100")
}

func (suite *TransferServiceTestSuite) TestExecuteTransfer_PreflightChecks() {
	a := suite.openAccount("100")
	eur, err := suite.ledger.OpenAccount(suite.ctx, uuid.NewString(), "EUR")
	suite.Require().NoError(err)

	_, err = suite.service.ExecuteTransfer(suite.ctx, suite.command("k-eur", a, eur.AccountID, "10"))
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.service.ExecuteTransfer(suite.ctx, suite.command("k-missing", a, uuid.NewString(), "10"))
	suite.ErrorIs(err, apperrors.ErrNotFound)

	_, err = suite.repo.FindTransactionByIdempotencyKey(suite.ctx, "k-missing")
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *TransferServiceTestSuite) TestReverseTransfer() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")
	original, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("k-orig", a, b, "300"))
	suite.Require().NoError(err)

	reversal, err := suite.service.ReverseTransfer(suite.ctx, original.TransactionID, "", "customer complaint")

	suite.Require().NoError(err)
	suite.Equal(domain.TransactionCompleted, reversal.Status)
	suite.assertBalance(a, "1000", "1000")
	suite.assertBalance(b, "0", "0")

	stored, err := suite.service.GetTransfer(suite.ctx, original.TransactionID)
	suite.Require().NoError(err)
	suite.Equal(domain.TransactionReversed, stored.Status)
	suite.Require().NotNil(stored.ReversedByID)
	suite.Equal(reversal.TransactionID, *stored.ReversedByID)

	reversalTxn, err := suite.service.GetTransfer(suite.ctx, reversal.TransactionID)
	suite.Require().NoError(err)
	suite.Equal(domain.TransactionTypeReversal, reversalTxn.Type)
	suite.Equal(b, reversalTxn.SourceAccountID)
	suite.Require().NotNil(reversalTxn.ReversalOfID)
	suite.Equal(original.TransactionID, *reversalTxn.ReversalOfID)
	suite.Contains(suite.events.types(), domain.EventTransferReversed)

	again, err := suite.service.ReverseTransfer(suite.ctx, original.TransactionID, "", "customer complaint")
	suite.Require().NoError(err)
	suite.True(again.Replayed)
	suite.Equal(reversal.TransactionID, again.TransactionID)

	_, err = suite.service.ReverseTransfer(suite.ctx, original.TransactionID, "other-key", "")
	suite.ErrorIs(err, apperrors.ErrInvalidTransition)
}

func (suite *TransferServiceTestSuite) TestReverseTransfer_OnlyCompletedTransfers() {
	a := suite.openAccount("10")
	b := suite.openAccount("0")
	failed, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("k-fail", a, b, "50"))
	suite.Require().NoError(err)
	suite.Require().Equal(domain.TransactionFailed, failed.Status)

	_, err = suite.service.ReverseTransfer(suite.ctx, failed.TransactionID, "", "")
	suite.ErrorIs(err, apperrors.ErrInvalidTransition)

	_, err = suite.service.ReverseTransfer(suite.ctx, uuid.NewString(), "", "")
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *TransferServiceTestSuite) TestListTransactionHistory_NewestFirst() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")
	var ids []string
	for i := 0; i < 3; i++ {
		result, err := suite.service.ExecuteTransfer(suite.ctx, suite.command(fmt.Sprintf("k-hist-%d", i), a, b, "10"))
		suite.Require().NoError(err)
		ids = append(ids, result.TransactionID)
		suite.now = suite.now.Add(time.Second)
	}

	page, err := suite.service.ListTransactionHistory(suite.ctx, a, 0, 2)

	suite.Require().NoError(err)
	suite.Equal(3, page.Total)
	suite.Require().Len(page.Items, 2)
	suite.Equal(ids[2], page.Items[0].TransactionID)
	suite.Equal(ids[1], page.Items[1].TransactionID)

	page, err = suite.service.ListTransactionHistory(suite.ctx, b, 1, 2)
	suite.Require().NoError(err)
	suite.Require().Len(page.Items, 1)
	suite.Equal(ids[0], page.Items[0].TransactionID)

	_, err = suite.service.ListTransactionHistory(suite.ctx, a, -1, 2)
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.service.ListTransactionHistory(suite.ctx, uuid.NewString(), 0, 2)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}
