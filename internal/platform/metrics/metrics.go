// Package metrics holds the Prometheus collectors of the transfer service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transfer_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "route"})

	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_outcomes_total",
		Help: "Transfers by type and resulting status",
	}, []string{"type", "status"})

	SagaCompensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_saga_compensations_total",
		Help: "Compensations attempted, by outcome",
	}, []string{"outcome"})

	SagasRecoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_sagas_recovered_total",
		Help: "Stale sagas handled by the recovery sweep, by the step they were found in",
	}, []string{"step"})

	LedgerOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by kind and result",
	}, []string{"operation", "result"})

	LedgerClientRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_client_retries_total",
		Help: "Retries issued by the ledger client after transient failures",
	}, []string{"operation"})

	CompliancePublishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "compliance_publish_failures_total",
		Help: "Compliance events that could not be delivered",
	})
)
