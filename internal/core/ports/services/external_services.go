package services

import (
	"context"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
)

// EventPublisher delivers compliance events. Failures must never affect a transfer.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ComplianceEvent) error
}

// CustomerDirectory answers whether a customer exists.
type CustomerDirectory interface {
	Exists(ctx context.Context, customerID string) (bool, error)
}
