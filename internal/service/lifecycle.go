package service

import (
	"context"
	"errors"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/observability"
	"github.com/sla15/Dropoff/internal/redis"
	"github.com/sla15/Dropoff/internal/repository"
)

// FeedPublisher publishes lifecycle events to a ride's feed.
type FeedPublisher interface {
	PublishRideChange(ctx context.Context, change domain.RideChange) error
}

type transitionKey struct {
	status domain.RideStatus
	event  domain.RideEvent
}

// transitions is the complete lifecycle table. A (status, event) pair not
// listed here is a silent no-op: the event is dropped without error and
// without side effects. Replaying an event against the state it already
// produced therefore costs nothing.
var transitions = map[transitionKey]domain.RideStatus{
	{domain.RideStatusSearching, domain.EventAccepted}:   domain.RideStatusAccepted,
	{domain.RideStatusAccepted, domain.EventArrived}:     domain.RideStatusArrived,
	{domain.RideStatusArrived, domain.EventStarted}:      domain.RideStatusInProgress,
	{domain.RideStatusInProgress, domain.EventCompleted}: domain.RideStatusCompleted,

	{domain.RideStatusSearching, domain.EventCancelledByCustomer}:  domain.RideStatusCancelled,
	{domain.RideStatusAccepted, domain.EventCancelledByCustomer}:   domain.RideStatusCancelled,
	{domain.RideStatusArrived, domain.EventCancelledByCustomer}:    domain.RideStatusCancelled,
	{domain.RideStatusInProgress, domain.EventCancelledByCustomer}: domain.RideStatusCancelled,

	{domain.RideStatusSearching, domain.EventCancelledByDriver}:  domain.RideStatusCancelledCounterparty,
	{domain.RideStatusAccepted, domain.EventCancelledByDriver}:   domain.RideStatusCancelledCounterparty,
	{domain.RideStatusArrived, domain.EventCancelledByDriver}:    domain.RideStatusCancelledCounterparty,
	{domain.RideStatusInProgress, domain.EventCancelledByDriver}: domain.RideStatusCancelledCounterparty,

	{domain.RideStatusSearching, domain.EventNoDriversFound}: domain.RideStatusCancelled,
}

// NextStatus resolves the lifecycle table for one step. ok is false for
// unlisted pairs.
func NextStatus(status domain.RideStatus, event domain.RideEvent) (domain.RideStatus, bool) {
	next, ok := transitions[transitionKey{status, event}]
	return next, ok
}

// RideLifecycle applies lifecycle events to rides: it resolves the
// transition table, writes the move conditionally, publishes the change to
// the ride's feed, and runs the transition's side effects.
type RideLifecycle struct {
	rideRepo      repository.RideRepository
	driverRepo    repository.DriverRepository
	customerRepo  repository.CustomerRepository
	locationStore redis.LocationStoreInterface
	cacheStore    *redis.CacheStore
	feed          FeedPublisher
	notifier      Notifier
	metrics       *observability.Metrics
}

// NewRideLifecycle creates a RideLifecycle.
func NewRideLifecycle(
	rideRepo repository.RideRepository,
	driverRepo repository.DriverRepository,
	customerRepo repository.CustomerRepository,
	locationStore redis.LocationStoreInterface,
	cacheStore *redis.CacheStore,
	feed FeedPublisher,
	notifier Notifier,
	metrics *observability.Metrics,
) *RideLifecycle {
	return &RideLifecycle{
		rideRepo:      rideRepo,
		driverRepo:    driverRepo,
		customerRepo:  customerRepo,
		locationStore: locationStore,
		cacheStore:    cacheStore,
		feed:          feed,
		notifier:      notifier,
		metrics:       metrics,
	}
}

// Apply moves the ride through one lifecycle event. Unlisted (status,
// event) pairs return the ride unchanged. A concurrent writer moving the
// ride first also resolves to a no-op re-read, which makes duplicate
// terminal events idempotent.
func (l *RideLifecycle) Apply(ctx context.Context, rideID string, event domain.RideEvent) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := l.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	next, ok := NextStatus(ride.Status, event)
	if !ok {
		return ride, nil
	}

	if isCancelEvent(event) {
		err = l.rideRepo.Cancel(ctx, rideID, next, string(event))
	} else {
		err = l.rideRepo.UpdateStatus(ctx, rideID, ride.Status, next)
	}
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost the race; the current state decides whether the
			// event still applies.
			return l.rideRepo.GetByID(ctx, rideID)
		}
		return nil, err
	}

	prev := ride.Status
	ride.Status = next

	if l.cacheStore != nil {
		_ = l.cacheStore.InvalidateRide(ctx, rideID)
	}

	if l.feed != nil {
		_ = l.feed.PublishRideChange(ctx, domain.RideChange{
			RideID:   ride.ID,
			Event:    event,
			Status:   next,
			DriverID: ride.DriverID,
		})
	}

	l.runSideEffects(ctx, ride, prev, event)

	return ride, nil
}

func isCancelEvent(event domain.RideEvent) bool {
	switch event {
	case domain.EventCancelledByCustomer, domain.EventCancelledByDriver, domain.EventNoDriversFound:
		return true
	}
	return false
}

func (l *RideLifecycle) runSideEffects(ctx context.Context, ride *domain.Ride, prev domain.RideStatus, event domain.RideEvent) {
	switch event {
	case domain.EventCompleted:
		if ride.CreditApplied > 0 {
			if err := l.customerRepo.DeductCredit(ctx, ride.CustomerID, ride.CreditApplied); err != nil {
				// The quote already reflected the credit; a failed
				// deduction is reconciled out of band.
				_ = err
			}
		}
		l.freeDriver(ctx, ride.DriverID)
		if l.notifier != nil {
			_ = l.notifier.NotifyRideCompleted(ctx, ride)
		}

	case domain.EventCancelledByCustomer:
		l.freeDriver(ctx, ride.DriverID)
		if l.metrics != nil {
			l.metrics.RidesCancelled.WithLabelValues("customer").Inc()
		}
		if l.notifier != nil && ride.DriverID != "" {
			_ = l.notifier.NotifyRideCancelled(ctx, ride)
		}

	case domain.EventCancelledByDriver:
		l.freeDriver(ctx, ride.DriverID)
		if l.metrics != nil {
			l.metrics.RidesCancelled.WithLabelValues("driver").Inc()
		}
		if l.notifier != nil {
			_ = l.notifier.NotifyRideCancelled(ctx, ride)
		}

	case domain.EventNoDriversFound:
		if l.metrics != nil {
			l.metrics.RidesCancelled.WithLabelValues("system").Inc()
		}
	}
}

// freeDriver returns the driver to the available pool after a terminal
// event. Harmless when the ride never got a driver.
func (l *RideLifecycle) freeDriver(ctx context.Context, driverID string) {
	if driverID == "" {
		return
	}
	_ = l.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusAvailable)
	if l.locationStore != nil {
		if driver, err := l.driverRepo.GetByID(ctx, driverID); err == nil {
			_ = l.locationStore.SetDriverMeta(ctx, driverID, driver.Category, true)
		}
	}
	if l.cacheStore != nil {
		_ = l.cacheStore.InvalidateDriver(ctx, driverID)
	}
}
