package domain

import "time"

// Compliance event types emitted by the transfer orchestrator.
const (
	EventTransferCompleted    = "TRANSFER_COMPLETED"
	EventTransferFailed       = "TRANSFER_FAILED"
	EventTransferCompensated  = "TRANSFER_COMPENSATED"
	EventTransferReversed     = "TRANSFER_REVERSED"
	EventReconciliationNeeded = "SAGA_RECONCILIATION_REQUIRED"
	EntityTypeTransaction     = "TRANSACTION"
	EntityTypeSaga            = "SAGA"
)

// ComplianceEvent is the fire-and-forget audit notification sent to the compliance service.
type ComplianceEvent struct {
	EntityType string            `json:"entityType"`
	EntityID   string            `json:"entityID"`
	EventType  string            `json:"eventType"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}
