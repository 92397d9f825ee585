package ledgerclient

import (
	"context"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
)

// LocalTransport calls an in-process account ledger. Used when LEDGER_BASE_URL is empty.
type LocalTransport struct {
	ledger portssvc.AccountLedger
}

// NewLocalTransport wraps ledger as a transport.
func NewLocalTransport(ledger portssvc.AccountLedger) *LocalTransport {
	return &LocalTransport{ledger: ledger}
}

var _ portssvc.LedgerClient = (*LocalTransport)(nil)

func (t *LocalTransport) Reserve(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.ledger.Reserve(ctx, req)
}

func (t *LocalTransport) Release(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.ledger.Release(ctx, req)
}

func (t *LocalTransport) Debit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.ledger.Debit(ctx, req)
}

func (t *LocalTransport) Credit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.ledger.Credit(ctx, req)
}

func (t *LocalTransport) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return t.ledger.GetAccount(ctx, accountID)
}

func (t *LocalTransport) FindOperation(ctx context.Context, accountID, correlationID string, op domain.LedgerOperation) (*domain.LedgerResult, error) {
	return t.ledger.FindOperation(ctx, accountID, correlationID, op)
}
