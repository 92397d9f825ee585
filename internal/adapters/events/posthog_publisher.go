package events

import (
	"context"
	"fmt"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/posthog/posthog-go"
)

const defaultPosthogEndpoint = "https://eu.i.posthog.com"

// posthogClient is the part of posthog.Client the publisher uses.
type posthogClient interface {
	Enqueue(posthog.Message) error
	Close() error
}

// PosthogPublisher captures compliance events in Posthog, keyed by the entity id.
type PosthogPublisher struct {
	client posthogClient
}

// NewPosthogPublisher creates a publisher for apiKey. An empty endpoint uses the EU cloud.
func NewPosthogPublisher(apiKey, endpoint string) (*PosthogPublisher, error) {
	if endpoint == "" {
		endpoint = defaultPosthogEndpoint
	}
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: endpoint})
	if err != nil {
		return nil, fmt.Errorf("failed to create posthog client: %w", err)
	}
	return &PosthogPublisher{client: client}, nil
}

var _ portssvc.EventPublisher = (*PosthogPublisher)(nil)

func (p *PosthogPublisher) Publish(ctx context.Context, event domain.ComplianceEvent) error {
	properties := posthog.NewProperties().
		Set("entity_type", event.EntityType)
	for k, v := range event.Metadata {
		properties.Set(k, v)
	}
	return p.client.Enqueue(posthog.Capture{
		DistinctId: event.EntityID,
		Event:      event.EventType,
		Timestamp:  event.OccurredAt,
		Properties: properties,
	})
}

// Close flushes queued captures.
func (p *PosthogPublisher) Close() error {
	return p.client.Close()
}
