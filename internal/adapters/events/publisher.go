// Package events delivers compliance events. Every publisher here is best effort:
// the transfer orchestrator never waits on or fails because of an event.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/middleware"
	"github.com/SscSPs/funds_transfer_app/internal/platform/metrics"
)

// ErrQueueFull is returned by AsyncPublisher when its buffer is exhausted; the event is dropped.
var ErrQueueFull = errors.New("compliance event queue is full")

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("compliance publisher is closed")

// LogPublisher writes events to the structured log. It is the fallback when no broker is configured.
type LogPublisher struct{}

var _ portssvc.EventPublisher = LogPublisher{}

func (LogPublisher) Publish(ctx context.Context, event domain.ComplianceEvent) error {
	middleware.GetLoggerFromCtx(ctx).Info("Compliance event",
		slog.String("event_type", event.EventType),
		slog.String("entity_type", event.EntityType),
		slog.String("entity_id", event.EntityID),
		slog.Any("metadata", event.Metadata),
		slog.Time("occurred_at", event.OccurredAt))
	return nil
}

// MultiPublisher fans an event out to several publishers and joins their errors.
type MultiPublisher []portssvc.EventPublisher

var _ portssvc.EventPublisher = MultiPublisher(nil)

func (m MultiPublisher) Publish(ctx context.Context, event domain.ComplianceEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type queuedEvent struct {
	ctx   context.Context
	event domain.ComplianceEvent
}

// AsyncPublisher hands events to a background worker through a bounded queue,
// so Publish never blocks on the network.
type AsyncPublisher struct {
	inner  portssvc.EventPublisher
	queue  chan queuedEvent
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncPublisher starts the worker. Call Close to flush the queue on shutdown.
func NewAsyncPublisher(inner portssvc.EventPublisher, buffer int, logger *slog.Logger) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &AsyncPublisher{
		inner:  inner,
		queue:  make(chan queuedEvent, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

var _ portssvc.EventPublisher = (*AsyncPublisher)(nil)

func (p *AsyncPublisher) Publish(ctx context.Context, event domain.ComplianceEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s for %s", ErrQueueFull, event.EventType, event.EntityID)
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for item := range p.queue {
		if err := p.inner.Publish(item.ctx, item.event); err != nil {
			metrics.CompliancePublishFailuresTotal.Inc()
			p.logger.Warn("Failed to deliver compliance event",
				slog.String("error", err.Error()),
				slog.String("event_type", item.event.EventType),
				slog.String("entity_id", item.event.EntityID))
		}
	}
}

// Close stops accepting events and waits until the queue is drained or ctx ends.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining compliance events: %w", ctx.Err())
	}
}
