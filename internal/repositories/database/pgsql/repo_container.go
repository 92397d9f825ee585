package pgsql

import (
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	ledgerRepo := newPgxLedgerRepository(dbPool)
	transferRepo := newPgxTransferRepository(dbPool)

	return portsrepo.RepositoryProvider{
		LedgerRepo:   ledgerRepo,
		TransferRepo: transferRepo,
	}
}
