package services

import (
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/platform/config"
)

// Dependencies carries the adapters the services are wired to. Nil fields are optional.
type Dependencies struct {
	Customers portssvc.CustomerDirectory
	Events    portssvc.EventPublisher
	Locker    portssvc.IdempotencyLocker

	// LedgerClient builds the client the orchestrator reaches the ledger through.
	// When nil the orchestrator calls the local ledger directly.
	LedgerClient func(local portssvc.AccountLedger) portssvc.LedgerClient
}

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, deps Dependencies) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	// The ledger comes first: the orchestrator talks to it through the client
	container.Ledger = NewLedgerService(
		repos.LedgerRepo,
		WithCustomerDirectory(deps.Customers),
		WithConflictRetries(cfg.LedgerConflictRetries),
	)

	var client portssvc.LedgerClient = container.Ledger
	if deps.LedgerClient != nil {
		client = deps.LedgerClient(container.Ledger)
	}

	transferOptions := []TransferOption{
		WithIdempotencyLocker(deps.Locker),
		WithEventPublisher(deps.Events),
	}
	container.Transfer = NewTransferService(repos.TransferRepo, client, transferOptions...)
	container.Recovery = NewSagaRecoverer(
		repos.TransferRepo,
		client,
		cfg.RecoveryStaleAfter,
		cfg.RecoveryBatchSize,
		transferOptions...,
	)

	return container
}
