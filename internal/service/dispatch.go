package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sla15/Dropoff/internal/config"
	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/observability"
)

// CandidateFinder is the slice of GeoMatcher the dispatch loop needs.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, ride *domain.Ride, radiusKm float64, exclude map[string]bool) ([]domain.DriverCandidate, error)
}

// RideStatusReader checks whether a ride is still worth searching for.
type RideStatusReader interface {
	GetStatus(ctx context.Context, rideID string) (domain.RideStatus, error)
}

// SearchCallbacks receive terminal search outcomes. OnExhausted fires when
// the search hit the hard stop or the customer declined to widen it; the
// caller cancels the ride from there.
type SearchCallbacks struct {
	OnExhausted func(ctx context.Context, ride *domain.Ride)
}

// search is the in-memory state of one ride's driver hunt. radiusKm only
// ever grows; notified guarantees each driver hears about a ride at most
// once no matter how many ticks see them.
type search struct {
	ride     *domain.Ride
	radiusKm float64
	limitKm  float64
	notified map[string]bool
	awaiting bool
	decision chan bool
	cancel   context.CancelFunc
}

// DispatchLoop runs the expanding-radius driver search for every ride in
// the searching state. Each ride gets its own goroutine and ticker; the
// registry lets accepts and cancellations stop a search from outside.
type DispatchLoop struct {
	cfg      config.DispatchConfig
	matcher  CandidateFinder
	statuses RideStatusReader
	notifier Notifier
	feed     FeedPublisher
	metrics  *observability.Metrics

	mu       sync.Mutex
	searches map[string]*search
}

// NewDispatchLoop creates a DispatchLoop.
func NewDispatchLoop(
	cfg config.DispatchConfig,
	matcher CandidateFinder,
	statuses RideStatusReader,
	notifier Notifier,
	feed FeedPublisher,
	metrics *observability.Metrics,
) *DispatchLoop {
	return &DispatchLoop{
		cfg:      cfg,
		matcher:  matcher,
		statuses: statuses,
		notifier: notifier,
		feed:     feed,
		metrics:  metrics,
		searches: make(map[string]*search),
	}
}

// Start begins the driver search for a ride. A second Start for the same
// ride is a no-op; the running search keeps its radius and dedup state.
func (d *DispatchLoop) Start(ctx context.Context, ride *domain.Ride, callbacks SearchCallbacks) {
	d.mu.Lock()
	if _, running := d.searches[ride.ID]; running {
		d.mu.Unlock()
		return
	}

	// The operator cap can be tuned, the hard stop cannot.
	limit := d.cfg.MaxRadiusKm
	if limit > d.cfg.HardStopKm {
		limit = d.cfg.HardStopKm
	}

	searchCtx, cancel := context.WithCancel(ctx)
	s := &search{
		ride:     ride,
		radiusKm: d.cfg.StartRadiusKm,
		limitKm:  limit,
		notified: make(map[string]bool),
		decision: make(chan bool, 1),
		cancel:   cancel,
	}
	d.searches[ride.ID] = s
	d.mu.Unlock()

	go d.run(searchCtx, s, callbacks)
}

// Stop ends a ride's search, if one is running. Called when the ride is
// accepted or cancelled.
func (d *DispatchLoop) Stop(rideID string) {
	d.mu.Lock()
	s, ok := d.searches[rideID]
	if ok {
		delete(d.searches, rideID)
	}
	d.mu.Unlock()

	if ok {
		s.cancel()
		if d.metrics != nil {
			d.metrics.SearchRadiusKm.Observe(s.radiusKm)
		}
	}
}

// ConfirmExpansion widens a paused search by the configured increment, up
// to the hard stop. Returns ErrRideNotSearching when no search is running
// for the ride.
func (d *DispatchLoop) ConfirmExpansion(rideID string) error {
	return d.decide(rideID, true)
}

// DeclineExpansion ends a paused search without widening it.
func (d *DispatchLoop) DeclineExpansion(rideID string) error {
	return d.decide(rideID, false)
}

func (d *DispatchLoop) decide(rideID string, expand bool) error {
	d.mu.Lock()
	s, ok := d.searches[rideID]
	d.mu.Unlock()
	if !ok {
		return ErrRideNotSearching
	}

	select {
	case s.decision <- expand:
	default:
		// A decision is already queued; drop the duplicate.
	}
	return nil
}

// Searching reports whether a search is currently running for the ride.
func (d *DispatchLoop) Searching(rideID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.searches[rideID]
	return ok
}

func (d *DispatchLoop) run(ctx context.Context, s *search, callbacks SearchCallbacks) {
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case expand := <-s.decision:
			if !s.awaiting {
				continue
			}
			s.awaiting = false
			if !expand {
				d.giveUp(s, callbacks)
				return
			}
			s.limitKm += d.cfg.ExpandIncrementKm
			if s.limitKm > d.cfg.HardStopKm {
				s.limitKm = d.cfg.HardStopKm
			}

		case <-ticker.C:
			done := d.tick(ctx, s, callbacks)
			if done {
				return
			}
		}
	}
}

// tick runs one search round. Returns true when the search is over and the
// goroutine should exit.
func (d *DispatchLoop) tick(ctx context.Context, s *search, callbacks SearchCallbacks) bool {
	if d.metrics != nil {
		d.metrics.DispatchTicks.Inc()
	}

	status, err := d.statuses.GetStatus(ctx, s.ride.ID)
	if err != nil {
		log.Printf("dispatch: status check for ride %s: %v", s.ride.ID, err)
		return false
	}
	if status != domain.RideStatusSearching {
		d.remove(s)
		return true
	}

	candidates, err := d.matcher.FindCandidates(ctx, s.ride, s.radiusKm, s.notified)
	if err != nil {
		log.Printf("dispatch: search for ride %s: %v", s.ride.ID, err)
		return false
	}

	for _, c := range candidates {
		s.notified[c.DriverID] = true
		if err := d.notifier.NotifyRideOffer(ctx, s.ride, c.DriverID); err != nil {
			log.Printf("dispatch: offer to driver %s: %v", c.DriverID, err)
		}
		if d.metrics != nil {
			d.metrics.DriversNotified.Inc()
		}
	}

	if s.awaiting {
		// Holding at the cap until the customer answers the prompt.
		// New drivers inside the current radius still get offers.
		return false
	}

	if s.radiusKm < s.limitKm {
		s.radiusKm += d.cfg.StepKm
		if s.radiusKm > s.limitKm {
			s.radiusKm = s.limitKm
		}
		return false
	}

	// Radius is at the cap with no match yet.
	if s.limitKm >= d.cfg.HardStopKm {
		d.giveUp(s, callbacks)
		return true
	}

	s.awaiting = true
	nextLimit := s.limitKm + d.cfg.ExpandIncrementKm
	if nextLimit > d.cfg.HardStopKm {
		nextLimit = d.cfg.HardStopKm
	}
	if d.feed != nil {
		_ = d.feed.PublishRideChange(ctx, domain.RideChange{
			RideID:   s.ride.ID,
			Event:    domain.EventExpansionRequested,
			Status:   domain.RideStatusSearching,
			RadiusKm: nextLimit,
		})
	}
	if d.notifier != nil {
		_ = d.notifier.NotifyExpansionPrompt(ctx, s.ride, nextLimit)
	}
	return false
}

func (d *DispatchLoop) giveUp(s *search, callbacks SearchCallbacks) {
	d.remove(s)

	// The exhausted callback owns the cancellation and its feed event;
	// this side only tells the customer and hands the ride over.
	ctx := context.Background()
	if d.notifier != nil {
		_ = d.notifier.NotifyNoDriversFound(ctx, s.ride)
	}
	if callbacks.OnExhausted != nil {
		callbacks.OnExhausted(ctx, s.ride)
	}
}

func (d *DispatchLoop) remove(s *search) {
	d.mu.Lock()
	delete(d.searches, s.ride.ID)
	d.mu.Unlock()
	s.cancel()
	if d.metrics != nil {
		d.metrics.SearchRadiusKm.Observe(s.radiusKm)
	}
}
