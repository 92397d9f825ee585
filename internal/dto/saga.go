package dto

import (
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
)

// SagaResponse defines the data returned for a saga on the operator endpoints.
type SagaResponse struct {
	SagaID              string             `json:"sagaID"`
	TransactionID       string             `json:"transactionID"`
	Type                domain.SagaType    `json:"type"`
	CurrentStep         domain.SagaStep    `json:"currentStep"`
	Status              domain.SagaStatus  `json:"status"`
	Payload             domain.SagaPayload `json:"payload"`
	ErrorDetail         string             `json:"errorDetail,omitempty"`
	NeedsReconciliation bool               `json:"needsReconciliation"`
	CreatedAt           time.Time          `json:"createdAt"`
	LastUpdatedAt       time.Time          `json:"lastUpdatedAt"`
}

// ToSagaResponse converts a domain.Saga to SagaResponse DTO.
func ToSagaResponse(s *domain.Saga) SagaResponse {
	return SagaResponse{
		SagaID:              s.SagaID,
		TransactionID:       s.TransactionID,
		Type:                s.Type,
		CurrentStep:         s.CurrentStep,
		Status:              s.Status,
		Payload:             s.Payload,
		ErrorDetail:         s.ErrorDetail,
		NeedsReconciliation: s.NeedsReconciliation,
		CreatedAt:           s.CreatedAt,
		LastUpdatedAt:       s.LastUpdatedAt,
	}
}

// ToSagaResponses converts a slice of sagas.
func ToSagaResponses(sagas []domain.Saga) []SagaResponse {
	res := make([]SagaResponse, len(sagas))
	for i, s := range sagas {
		res[i] = ToSagaResponse(&s)
	}
	return res
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}
