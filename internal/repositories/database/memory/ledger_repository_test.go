package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
	"github.com/SscSPs/funds_transfer_app/internal/repositories/database/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type LedgerRepositoryTestSuite struct {
	suite.Suite
	repo *memory.LedgerRepository
	ctx  context.Context
}

func (suite *LedgerRepositoryTestSuite) SetupTest() {
	suite.repo = memory.NewLedgerRepository()
	suite.ctx = context.Background()
	suite.Require().NoError(suite.repo.SaveAccount(suite.ctx, domain.Account{
		AccountID:    "acc-1",
		CurrencyCode: "USD",
		Status:       domain.AccountActive,
	}))
}

func (suite *LedgerRepositoryTestSuite) credit(amount int64, correlationID string) error {
	return suite.repo.WithAccountLock(suite.ctx, "acc-1", func(ctx context.Context, tx portsrepo.LedgerTx) error {
		acc := tx.Account()
		next := acc
		next.Balance = acc.Balance.Add(decimal.NewFromInt(amount))
		next.AvailableBalance = acc.AvailableBalance.Add(decimal.NewFromInt(amount))
		next.Version = acc.Version + 1
		entry := &domain.BalanceHistoryEntry{
			EntryID:       correlationID,
			AccountID:     acc.AccountID,
			Operation:     domain.OpCredit,
			CorrelationID: correlationID,
			Amount:        decimal.NewFromInt(amount),
			Version:       next.Version,
		}
		return tx.Apply(ctx, next, acc.Version, entry)
	})
}

func (suite *LedgerRepositoryTestSuite) TestSaveAccount_Duplicate() {
	err := suite.repo.SaveAccount(suite.ctx, domain.Account{AccountID: "acc-1"})
	suite.ErrorIs(err, apperrors.ErrDuplicate)
}

func (suite *LedgerRepositoryTestSuite) TestFindAccountByID_NotFound() {
	acc, err := suite.repo.FindAccountByID(suite.ctx, "missing")
	suite.Nil(acc)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *LedgerRepositoryTestSuite) TestWithAccountLock_CommitsOnSuccess() {
	suite.Require().NoError(suite.credit(10, "c1"))

	acc, err := suite.repo.FindAccountByID(suite.ctx, "acc-1")
	suite.Require().NoError(err)
	suite.Equal("10", acc.Balance.String())
	suite.Equal(int64(1), acc.Version)

	entries, err := suite.repo.FindEntries(suite.ctx, "acc-1", "c1")
	suite.Require().NoError(err)
	suite.Len(entries, 1)
}

func (suite *LedgerRepositoryTestSuite) TestWithAccountLock_DiscardsOnError() {
	err := suite.repo.WithAccountLock(suite.ctx, "acc-1", func(ctx context.Context, tx portsrepo.LedgerTx) error {
		acc := tx.Account()
		acc.Balance = decimal.NewFromInt(999)
		suite.Require().NoError(tx.Apply(ctx, acc, acc.Version, nil))
		return apperrors.ErrInsufficientFunds
	})
	suite.ErrorIs(err, apperrors.ErrInsufficientFunds)

	acc, err := suite.repo.FindAccountByID(suite.ctx, "acc-1")
	suite.Require().NoError(err)
	suite.True(acc.Balance.IsZero())
}

func (suite *LedgerRepositoryTestSuite) TestApply_VersionMismatch() {
	err := suite.repo.WithAccountLock(suite.ctx, "acc-1", func(ctx context.Context, tx portsrepo.LedgerTx) error {
		return tx.Apply(ctx, tx.Account(), 42, nil)
	})
	suite.ErrorIs(err, apperrors.ErrConcurrentModification)
}

func (suite *LedgerRepositoryTestSuite) TestWithAccountLock_SerializesWriters() {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			suite.NoError(suite.credit(1, "c"))
		}()
	}
	wg.Wait()

	acc, err := suite.repo.FindAccountByID(suite.ctx, "acc-1")
	suite.Require().NoError(err)
	suite.Equal("50", acc.Balance.String())
	suite.Equal(int64(50), acc.Version)
}

func (suite *LedgerRepositoryTestSuite) TestWithAccountLock_HonoursContext() {
	hold := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		_ = suite.repo.WithAccountLock(suite.ctx, "acc-1", func(ctx context.Context, tx portsrepo.LedgerTx) error {
			close(acquired)
			<-hold
			return nil
		})
	}()
	<-acquired

	ctx, cancel := context.WithTimeout(suite.ctx, 20*time.Millisecond)
	defer cancel()
	err := suite.repo.WithAccountLock(ctx, "acc-1", func(ctx context.Context, tx portsrepo.LedgerTx) error { return nil })
	suite.ErrorIs(err, context.DeadlineExceeded)
	close(hold)
}

func (suite *LedgerRepositoryTestSuite) TestListHistory_NewestFirst() {
	for _, id := range []string{"c1", "c2", "c3"} {
		suite.Require().NoError(suite.credit(5, id))
	}

	page, total, err := suite.repo.ListHistory(suite.ctx, "acc-1", 2, 0)
	suite.Require().NoError(err)
	suite.Equal(3, total)
	suite.Require().Len(page, 2)
	suite.Equal("c3", page[0].CorrelationID)
	suite.Equal("c2", page[1].CorrelationID)

	page, _, err = suite.repo.ListHistory(suite.ctx, "acc-1", 2, 2)
	suite.Require().NoError(err)
	suite.Require().Len(page, 1)
	suite.Equal("c1", page[0].CorrelationID)
}

func TestLedgerRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerRepositoryTestSuite))
}
