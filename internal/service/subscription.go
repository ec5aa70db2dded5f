package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/observability"
)

// EventStream is a live feed of one ride's lifecycle events.
type EventStream interface {
	Next(ctx context.Context) (domain.RideChange, error)
	Close() error
}

// PositionStream is a live feed of driver position fixes.
type PositionStream interface {
	Next(ctx context.Context) (domain.DriverPosition, error)
	Close() error
}

// EventSource opens ride feeds and the broadcast positions feed.
type EventSource interface {
	OpenRideFeed(ctx context.Context, rideID string) (EventStream, error)
	OpenDriverPositions(ctx context.Context) (PositionStream, error)
}

const reconnectBackoff = 3 * time.Second

// Subscription is a handle on one ride's event delivery. Close stops
// delivery permanently; a closed subscription never reconnects.
type Subscription struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SubscriptionManager delivers ride events to handlers and survives feed
// connection loss. A dropped connection is retried on a fixed backoff until
// the subscription is closed. Delivery is at-least-once: a reconnect can
// replay events the handler already saw, so handlers tolerate duplicates.
type SubscriptionManager struct {
	source  EventSource
	metrics *observability.Metrics
}

// NewSubscriptionManager creates a SubscriptionManager.
func NewSubscriptionManager(source EventSource, metrics *observability.Metrics) *SubscriptionManager {
	return &SubscriptionManager{source: source, metrics: metrics}
}

// Subscribe starts delivering the ride's events to handler on a dedicated
// goroutine. The handler runs one event at a time.
func (m *SubscriptionManager) Subscribe(ctx context.Context, rideID string, handler func(domain.RideChange)) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel}

	go m.pump(subCtx, rideID, handler, sub)

	return sub
}

// SubscribeDriverPositions starts delivering position fixes to handler on a
// dedicated goroutine. A nil filter delivers every fix; otherwise only
// fixes the filter accepts reach the handler.
func (m *SubscriptionManager) SubscribeDriverPositions(ctx context.Context, filter func(domain.DriverPosition) bool, handler func(domain.DriverPosition)) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel}

	go m.pumpPositions(subCtx, filter, handler, sub)

	return sub
}

func (m *SubscriptionManager) pump(ctx context.Context, rideID string, handler func(domain.RideChange), sub *Subscription) {
	label := "ride " + rideID
	for {
		stream, err := m.source.OpenRideFeed(ctx, rideID)
		if err != nil {
			if !m.waitBackoff(ctx, sub, label, err) {
				return
			}
			continue
		}

		err = m.consume(ctx, stream, handler)
		stream.Close()
		if ctx.Err() != nil || sub.isClosed() {
			return
		}
		if !m.waitBackoff(ctx, sub, label, err) {
			return
		}
	}
}

func (m *SubscriptionManager) pumpPositions(ctx context.Context, filter func(domain.DriverPosition) bool, handler func(domain.DriverPosition), sub *Subscription) {
	for {
		stream, err := m.source.OpenDriverPositions(ctx)
		if err != nil {
			if !m.waitBackoff(ctx, sub, "driver positions", err) {
				return
			}
			continue
		}

		err = m.consumePositions(ctx, stream, filter, handler)
		stream.Close()
		if ctx.Err() != nil || sub.isClosed() {
			return
		}
		if !m.waitBackoff(ctx, sub, "driver positions", err) {
			return
		}
	}
}

func (m *SubscriptionManager) consumePositions(ctx context.Context, stream PositionStream, filter func(domain.DriverPosition) bool, handler func(domain.DriverPosition)) error {
	for {
		pos, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		if filter != nil && !filter(pos) {
			continue
		}
		handler(pos)
	}
}

func (m *SubscriptionManager) consume(ctx context.Context, stream EventStream, handler func(domain.RideChange)) error {
	for {
		change, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		handler(change)
	}
}

// waitBackoff sleeps the fixed reconnect delay. Returns false when the
// subscription ended while waiting.
func (m *SubscriptionManager) waitBackoff(ctx context.Context, sub *Subscription, label string, cause error) bool {
	if ctx.Err() != nil || sub.isClosed() {
		return false
	}

	log.Printf("feed for %s dropped, reconnecting in %s: %v", label, reconnectBackoff, cause)
	if m.metrics != nil {
		m.metrics.FeedReconnects.Inc()
	}

	timer := time.NewTimer(reconnectBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return !sub.isClosed()
	}
}
