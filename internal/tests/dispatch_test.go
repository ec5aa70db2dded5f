package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sla15/Dropoff/internal/config"
	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/service"
)

func testDispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		StartRadiusKm:     2,
		StepKm:            2,
		MaxRadiusKm:       10,
		ExpandIncrementKm: 20,
		HardStopKm:        120,
		TickInterval:      5 * time.Millisecond,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newSearchingRide(id string) *domain.Ride {
	return &domain.Ride{
		ID:              id,
		CustomerID:      "customer-1",
		VehicleCategory: domain.CategoryAny,
		Status:          domain.RideStatusSearching,
		CreatedAt:       time.Now(),
	}
}

func TestDispatch_OffersNearbyDriver(t *testing.T) {
	rideRepo := NewMockRideRepository()
	locationStore := NewMockLocationStore()
	notifier := NewMockNotifier()
	feed := NewMockFeed()

	ride := newSearchingRide("ride-1")
	rideRepo.AddRide(ride)
	locationStore.AddDriver("driver-1", 1.0, domain.CategoryEconomy)

	loop := service.NewDispatchLoop(testDispatchConfig(), NewMockMatcher(locationStore), rideRepo, notifier, feed, nil)
	loop.Start(context.Background(), ride, service.SearchCallbacks{})
	defer loop.Stop(ride.ID)

	waitFor(t, time.Second, func() bool {
		return len(notifier.OfferedDrivers()) > 0
	}, "expected driver-1 to receive an offer")

	offers := notifier.OfferedDrivers()
	if offers[0] != "driver-1" {
		t.Errorf("expected offer to driver-1, got %s", offers[0])
	}
}

func TestDispatch_OffersEachDriverAtMostOnce(t *testing.T) {
	rideRepo := NewMockRideRepository()
	locationStore := NewMockLocationStore()
	notifier := NewMockNotifier()

	ride := newSearchingRide("ride-1")
	rideRepo.AddRide(ride)
	locationStore.AddDriver("driver-1", 1.0, domain.CategoryEconomy)

	loop := service.NewDispatchLoop(testDispatchConfig(), NewMockMatcher(locationStore), rideRepo, notifier, NewMockFeed(), nil)
	loop.Start(context.Background(), ride, service.SearchCallbacks{})
	defer loop.Stop(ride.ID)

	waitFor(t, time.Second, func() bool {
		return len(notifier.OfferedDrivers()) > 0
	}, "expected driver-1 to receive an offer")

	// Let several more ticks pass; the driver stays in range the whole time.
	time.Sleep(50 * time.Millisecond)

	if got := len(notifier.OfferedDrivers()); got != 1 {
		t.Errorf("expected exactly 1 offer across ticks, got %d", got)
	}
}

func TestDispatch_RadiusReachesFartherDrivers(t *testing.T) {
	rideRepo := NewMockRideRepository()
	locationStore := NewMockLocationStore()
	notifier := NewMockNotifier()

	ride := newSearchingRide("ride-1")
	rideRepo.AddRide(ride)
	// Outside the 2km start radius, inside the 10km operator maximum.
	locationStore.AddDriver("driver-far", 7.0, domain.CategoryEconomy)

	loop := service.NewDispatchLoop(testDispatchConfig(), NewMockMatcher(locationStore), rideRepo, notifier, NewMockFeed(), nil)
	loop.Start(context.Background(), ride, service.SearchCallbacks{})
	defer loop.Stop(ride.ID)

	waitFor(t, time.Second, func() bool {
		return len(notifier.OfferedDrivers()) > 0
	}, "expected the radius to grow out to driver-far")
}

func TestDispatch_EndsWhenRideNoLongerSearching(t *testing.T) {
	rideRepo := NewMockRideRepository()
	notifier := NewMockNotifier()

	ride := newSearchingRide("ride-1")
	rideRepo.AddRide(ride)

	loop := service.NewDispatchLoop(testDispatchConfig(), NewMockMatcher(NewMockLocationStore()), rideRepo, notifier, NewMockFeed(), nil)
	loop.Start(context.Background(), ride, service.SearchCallbacks{})

	// Another path accepted the ride.
	rideRepo.SetStatus(ride.ID, domain.RideStatusAccepted)

	waitFor(t, time.Second, func() bool {
		return !loop.Searching(ride.ID)
	}, "expected the search to end once the ride left searching")
}

func TestDispatch_PromptsAtOperatorMaximum(t *testing.T) {
	cfg := testDispatchConfig()
	cfg.MaxRadiusKm = 4 // Two ticks to the cap.

	rideRepo := NewMockRideRepository()
	notifier := NewMockNotifier()
	feed := NewMockFeed()

	ride := newSearchingRide("ride-1")
	rideRepo.AddRide(ride)

	loop := service.NewDispatchLoop(cfg, NewMockMatcher(NewMockLocationStore()), rideRepo, notifier, feed, nil)
	loop.Start(context.Background(), ride, service.SearchCallbacks{})
	defer loop.Stop(ride.ID)

	waitFor(t, time.Second, func() bool {
		return notifier.PromptCount() > 0
	}, "expected an expansion prompt at the operator maximum")

	// The prompt offers the next limit, not the current one.
	if got := notifier.ExpansionPrompts[0]; got != 24 {
		t.Errorf("expected prompt for 24 km, got %.0f", got)
	}

	var sawPrompt bool
	for _, c := range feed.Changes() {
		if c.Event == domain.EventExpansionRequested {
			sawPrompt = true
		}
	}
	if !sawPrompt {
		t.Error("expected expansion_requested on the ride feed")
	}

	// The search holds at the cap while the customer decides.
	if !loop.Searching(ride.ID) {
		t.Error("expected the search to keep running while awaiting the answer")
	}
}

func TestDispatch_ConfirmExpansionWidensSearch(t *testing.T) {
	cfg := testDispatchConfig()
	cfg.MaxRadiusKm = 4

	rideRepo := NewMockRideRepository()
	locationStore := NewMockLocationStore()
	notifier := NewMockNotifier()

	ride := newSearchingRide("ride-1")
	rideRepo.AddRide(ride)
	// Beyond the operator maximum, within one customer expansion.
	locationStore.AddDriver("driver-remote", 15.0, domain.CategoryEconomy)

	loop := service.NewDispatchLoop(cfg, NewMockMatcher(locationStore), rideRepo, notifier, NewMockFeed(), nil)
	loop.Start(context.Background(), ride, service.SearchCallbacks{})
	defer loop.Stop(ride.ID)

	waitFor(t, time.Second, func() bool {
		return notifier.PromptCount() > 0
	}, "expected an expansion prompt")

	if err := loop.ConfirmExpansion(ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return len(notifier.OfferedDrivers()) > 0
	}, "expected the widened search to reach driver-remote")
}

func TestDispatch_DeclineEndsSearch(t *testing.T) {
	cfg := testDispatchConfig()
	cfg.MaxRadiusKm = 4

	rideRepo := NewMockRideRepository()
	notifier := NewMockNotifier()
	feed := NewMockFeed()

	var exhausted int32

	ride := newSearchingRide("ride-1")
	rideRepo.AddRide(ride)

	loop := service.NewDispatchLoop(cfg, NewMockMatcher(NewMockLocationStore()), rideRepo, notifier, feed, nil)
	loop.Start(context.Background(), ride, service.SearchCallbacks{
		OnExhausted: func(ctx context.Context, r *domain.Ride) {
			atomic.AddInt32(&exhausted, 1)
		},
	})

	waitFor(t, time.Second, func() bool {
		return notifier.PromptCount() > 0
	}, "expected an expansion prompt")

	if err := loop.DeclineExpansion(ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return atomic.LoadInt32(&exhausted) == 1
	}, "expected OnExhausted after the customer declined")

	if loop.Searching(ride.ID) {
		t.Error("expected the search to be gone after decline")
	}
	if atomic.LoadInt32(&notifier.NoDriversCount) != 1 {
		t.Error("expected a no-drivers push to the customer")
	}

	// Cancelling the ride belongs to the exhausted callback; the loop
	// itself publishes nothing for the give-up.
	for _, c := range feed.Changes() {
		if c.Event == domain.EventNoDriversFound {
			t.Error("expected the loop to leave the no-drivers feed event to the callback")
		}
	}
}

func TestDispatch_OperatorCapClampedToHardStop(t *testing.T) {
	cfg := testDispatchConfig()
	// Misconfigured operator cap beyond the hard stop: the search must
	// still end at the hard stop instead of prompting past it.
	cfg.MaxRadiusKm = 50
	cfg.HardStopKm = 4

	rideRepo := NewMockRideRepository()
	notifier := NewMockNotifier()

	var exhausted int32

	ride := newSearchingRide("ride-1")
	rideRepo.AddRide(ride)

	loop := service.NewDispatchLoop(cfg, NewMockMatcher(NewMockLocationStore()), rideRepo, notifier, NewMockFeed(), nil)
	loop.Start(context.Background(), ride, service.SearchCallbacks{
		OnExhausted: func(ctx context.Context, r *domain.Ride) {
			atomic.AddInt32(&exhausted, 1)
		},
	})

	waitFor(t, time.Second, func() bool {
		return atomic.LoadInt32(&exhausted) == 1
	}, "expected the search to give up at the hard stop")

	if notifier.PromptCount() != 0 {
		t.Error("expected no expansion prompt beyond the hard stop")
	}
}

func TestDispatch_HardStopGivesUpWithoutPrompt(t *testing.T) {
	cfg := testDispatchConfig()
	// Operator maximum already at the hard stop: no expansion to offer.
	cfg.MaxRadiusKm = 4
	cfg.HardStopKm = 4

	rideRepo := NewMockRideRepository()
	notifier := NewMockNotifier()

	var exhausted int32

	ride := newSearchingRide("ride-1")
	rideRepo.AddRide(ride)

	loop := service.NewDispatchLoop(cfg, NewMockMatcher(NewMockLocationStore()), rideRepo, notifier, NewMockFeed(), nil)
	loop.Start(context.Background(), ride, service.SearchCallbacks{
		OnExhausted: func(ctx context.Context, r *domain.Ride) {
			atomic.AddInt32(&exhausted, 1)
		},
	})

	waitFor(t, time.Second, func() bool {
		return atomic.LoadInt32(&exhausted) == 1
	}, "expected the search to give up at the hard stop")

	if notifier.PromptCount() != 0 {
		t.Error("expected no expansion prompt at the hard stop")
	}
}

func TestDispatch_StartIsIdempotent(t *testing.T) {
	rideRepo := NewMockRideRepository()

	ride := newSearchingRide("ride-1")
	rideRepo.AddRide(ride)

	loop := service.NewDispatchLoop(testDispatchConfig(), NewMockMatcher(NewMockLocationStore()), rideRepo, NewMockNotifier(), NewMockFeed(), nil)
	loop.Start(context.Background(), ride, service.SearchCallbacks{})
	loop.Start(context.Background(), ride, service.SearchCallbacks{})

	if !loop.Searching(ride.ID) {
		t.Fatal("expected a running search")
	}

	// One Stop clears it; the second Start must not have registered a twin.
	loop.Stop(ride.ID)
	if loop.Searching(ride.ID) {
		t.Error("expected the search to be gone after Stop")
	}
}

func TestDispatch_DecideWithoutSearch(t *testing.T) {
	loop := service.NewDispatchLoop(testDispatchConfig(), NewMockMatcher(NewMockLocationStore()), NewMockRideRepository(), NewMockNotifier(), NewMockFeed(), nil)

	if err := loop.ConfirmExpansion("ride-unknown"); !errors.Is(err, service.ErrRideNotSearching) {
		t.Errorf("expected ErrRideNotSearching, got %v", err)
	}
	if err := loop.DeclineExpansion("ride-unknown"); !errors.Is(err, service.ErrRideNotSearching) {
		t.Errorf("expected ErrRideNotSearching, got %v", err)
	}
}
