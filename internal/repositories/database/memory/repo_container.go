package memory

import (
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
)

// NewRepositoryProvider wires the in-memory stores, used when no database is configured.
func NewRepositoryProvider() portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		LedgerRepo:   NewLedgerRepository(),
		TransferRepo: NewTransferRepository(),
	}
}
