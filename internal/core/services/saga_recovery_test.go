package services_test

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// seedSaga stores a transfer of amount from a to b abandoned on step, after applying
// the given ledger operations for it.
func (suite *TransferServiceTestSuite) seedSaga(a, b, amount string, status domain.SagaStatus, step domain.SagaStep, applied ...domain.LedgerOperation) domain.Saga {
	stale := suite.now.Add(-5 * time.Minute)
	txnStatus := domain.TransactionProcessing
	if step == domain.StepStarted {
		txnStatus = domain.TransactionPending
	}
	txn := domain.Transaction{
		TransactionID:        uuid.NewString(),
		IdempotencyKey:       uuid.NewString(),
		SourceAccountID:      a,
		DestinationAccountID: b,
		Amount:               decimal.RequireFromString(amount),
		CurrencyCode:         "USD",
		Type:                 domain.TransactionTypeTransfer,
		Status:               txnStatus,
		ReferenceNumber:      "TRF-20260314-" + uuid.NewString()[:10],
		AuditFields:          domain.AuditFields{CreatedAt: stale, LastUpdatedAt: stale},
	}
	saga := domain.Saga{
		SagaID:        uuid.NewString(),
		TransactionID: txn.TransactionID,
		Type:          domain.SagaTypeTransfer,
		CurrentStep:   step,
		Status:        status,
		Payload: domain.SagaPayload{
			Amount:               txn.Amount,
			SourceAccountID:      a,
			DestinationAccountID: b,
			CurrencyCode:         "USD",
		},
		AuditFields: domain.AuditFields{CreatedAt: stale, LastUpdatedAt: stale},
	}
	suite.Require().NoError(suite.repo.CreateTransfer(suite.ctx, txn, saga))

	for _, op := range applied {
		req := domain.LedgerRequest{AccountID: a, Amount: txn.Amount, CorrelationID: txn.TransactionID, Reason: domain.ReasonTransfer}
		var err error
		switch op {
		case domain.OpReserve:
			_, err = suite.ledger.Reserve(suite.ctx, req)
		case domain.OpDebit:
			_, err = suite.ledger.Debit(suite.ctx, req)
		case domain.OpCredit:
			req.AccountID = b
			_, err = suite.ledger.Credit(suite.ctx, req)
		}
		suite.Require().NoError(err)
	}
	return saga
}

func (suite *TransferServiceTestSuite) TestRecoverStale_DispatchesOnStep() {
	tests := []struct {
		name       string
		status     domain.SagaStatus
		step       domain.SagaStep
		applied    []domain.LedgerOperation
		wantSaga   domain.SagaStatus
		wantTxn    domain.TransactionStatus
		wantSource string
		wantDest   string
	}{
		{"started before any call", domain.SagaStarted, domain.StepStarted, nil,
			domain.SagaFailed, domain.TransactionFailed, "1000", "0"},
		{"reserving, reserve applied", domain.SagaInProgress, domain.StepReserving, []domain.LedgerOperation{domain.OpReserve},
			domain.SagaCompensated, domain.TransactionFailed, "1000", "0"},
		{"reserving, reserve never landed", domain.SagaInProgress, domain.StepReserving, nil,
			domain.SagaFailed, domain.TransactionFailed, "1000", "0"},
		{"reserved", domain.SagaInProgress, domain.StepReserved, []domain.LedgerOperation{domain.OpReserve},
			domain.SagaCompensated, domain.TransactionFailed, "1000", "0"},
		{"debiting, debit applied", domain.SagaInProgress, domain.StepDebiting, []domain.LedgerOperation{domain.OpReserve, domain.OpDebit},
			domain.SagaCompensated, domain.TransactionFailed, "1000", "0"},
		{"debiting, debit never landed", domain.SagaInProgress, domain.StepDebiting, []domain.LedgerOperation{domain.OpReserve},
			domain.SagaCompensated, domain.TransactionFailed, "1000", "0"},
		{"debited", domain.SagaInProgress, domain.StepDebited, []domain.LedgerOperation{domain.OpReserve, domain.OpDebit},
			domain.SagaCompensated, domain.TransactionFailed, "1000", "0"},
		{"crediting, credit applied", domain.SagaInProgress, domain.StepCrediting, []domain.LedgerOperation{domain.OpReserve, domain.OpDebit, domain.OpCredit},
			domain.SagaCompleted, domain.TransactionCompleted, "500", "500"},
		{"crediting, credit never landed", domain.SagaInProgress, domain.StepCrediting, []domain.LedgerOperation{domain.OpReserve, domain.OpDebit},
			domain.SagaCompensated, domain.TransactionFailed, "1000", "0"},
		{"interrupted compensation", domain.SagaCompensating, domain.StepDebiting, []domain.LedgerOperation{domain.OpReserve},
			domain.SagaCompensated, domain.TransactionFailed, "1000", "0"},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			a := suite.openAccount("1000")
			b := suite.openAccount("0")
			saga := suite.seedSaga(a, b, "500", tt.status, tt.step, tt.applied...)

			recovered, err := suite.recoverer.RecoverStale(suite.ctx)

			suite.Require().NoError(err)
			suite.Equal(1, recovered)
			stored := suite.sagaFor(saga.TransactionID)
			suite.Equal(tt.wantSaga, stored.Status)
			txn, err := suite.service.GetTransfer(suite.ctx, saga.TransactionID)
			suite.Require().NoError(err)
			suite.Equal(tt.wantTxn, txn.Status)
			suite.assertBalance(a, tt.wantSource, tt.wantSource)
			suite.assertBalance(b, tt.wantDest, tt.wantDest)
		})
	}
}

func (suite *TransferServiceTestSuite) TestRecoverStale_LeavesUnknownOutcomesForLater() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")
	saga := suite.seedSaga(a, b, "200", domain.SagaInProgress, domain.StepDebiting, domain.OpReserve)
	suite.client.setFindErr(fmt.Errorf("%w: ledger down", apperrors.ErrTransient))

	recovered, err := suite.recoverer.RecoverStale(suite.ctx)

	suite.Require().NoError(err)
	suite.Equal(0, recovered)
	stored := suite.sagaFor(saga.TransactionID)
	suite.Equal(domain.SagaInProgress, stored.Status)
	suite.Equal(domain.StepDebiting, stored.CurrentStep)
	suite.assertBalance(a, "1000", "800")

	suite.client.setFindErr(nil)
	recovered, err = suite.recoverer.RecoverStale(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, recovered)
	suite.assertBalance(a, "1000", "1000")
}

func (suite *TransferServiceTestSuite) TestRecoverStale_IgnoresTerminalSagas() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")
	_, err := suite.service.ExecuteTransfer(suite.ctx, suite.command("k-done", a, b, "100"))
	suite.Require().NoError(err)
	suite.now = suite.now.Add(time.Hour)

	recovered, err := suite.recoverer.RecoverStale(suite.ctx)

	suite.Require().NoError(err)
	suite.Equal(0, recovered)
}

func (suite *TransferServiceTestSuite) TestRun_SweepsUntilCancelled() {
	a := suite.openAccount("1000")
	b := suite.openAccount("0")
	saga := suite.seedSaga(a, b, "300", domain.SagaInProgress, domain.StepReserved, domain.OpReserve)

	ctx, cancel := context.WithCancel(suite.ctx)
	done := make(chan error, 1)
	go func() { done <- suite.recoverer.Run(ctx, 10*time.Millisecond) }()

	suite.Eventually(func() bool {
		stored, err := suite.repo.FindSagaByID(suite.ctx, saga.SagaID)
		return err == nil && stored.Status == domain.SagaCompensated
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(2 * time.Second):
		suite.Fail("recovery loop did not stop")
	}
	suite.assertBalance(a, "1000", "1000")
}
