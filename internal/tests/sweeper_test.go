package tests

import (
	"context"
	"testing"
	"time"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/service"
)

func TestSweeper_CancelsOrphanedSearches(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	feed := NewMockFeed()

	// Left over from before a restart.
	rideRepo.AddRide(&domain.Ride{
		ID:         "ride-orphan",
		CustomerID: "customer-1",
		Status:     domain.RideStatusSearching,
		CreatedAt:  time.Now().Add(-time.Hour),
	})
	// Already matched; not the sweeper's business.
	rideRepo.AddRide(&domain.Ride{
		ID:         "ride-active",
		CustomerID: "customer-2",
		DriverID:   "driver-1",
		Status:     domain.RideStatusAccepted,
		CreatedAt:  time.Now().Add(-time.Hour),
	})

	sweeper := service.NewSweeper(rideRepo, feed, nil, time.Minute, nil)

	swept, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 1 {
		t.Errorf("expected 1 swept ride, got %d", swept)
	}

	if got := rideRepo.GetRide("ride-orphan").Status; got != domain.RideStatusCancelled {
		t.Errorf("expected orphan cancelled, got %s", got)
	}
	if got := rideRepo.GetRide("ride-active").Status; got != domain.RideStatusAccepted {
		t.Errorf("expected active ride untouched, got %s", got)
	}

	// The customer's open stream hears the search ended.
	if feed.LastChange().Event != domain.EventNoDriversFound {
		t.Errorf("expected no_drivers_found on the feed, got %s", feed.LastChange().Event)
	}
}

func TestSweeper_LeavesFreshSearchesAlone(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()

	rideRepo.AddRide(&domain.Ride{
		ID:         "ride-fresh",
		CustomerID: "customer-1",
		Status:     domain.RideStatusSearching,
		CreatedAt:  time.Now(),
	})

	sweeper := service.NewSweeper(rideRepo, NewMockFeed(), nil, time.Minute, nil)

	swept, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 0 {
		t.Errorf("expected nothing swept, got %d", swept)
	}
	if got := rideRepo.GetRide("ride-fresh").Status; got != domain.RideStatusSearching {
		t.Errorf("expected fresh search untouched, got %s", got)
	}
}

func TestSweeper_SkipsLiveSearches(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()

	// Old but still owned by a running search, likely waiting on an
	// expansion decision.
	rideRepo.AddRide(&domain.Ride{
		ID:         "ride-live",
		CustomerID: "customer-1",
		Status:     domain.RideStatusSearching,
		CreatedAt:  time.Now().Add(-time.Hour),
	})
	rideRepo.AddRide(&domain.Ride{
		ID:         "ride-orphan",
		CustomerID: "customer-2",
		Status:     domain.RideStatusSearching,
		CreatedAt:  time.Now().Add(-time.Hour),
	})

	live := func(rideID string) bool { return rideID == "ride-live" }
	sweeper := service.NewSweeper(rideRepo, NewMockFeed(), nil, time.Minute, live)

	swept, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 1 {
		t.Errorf("expected 1 swept ride, got %d", swept)
	}
	if got := rideRepo.GetRide("ride-live").Status; got != domain.RideStatusSearching {
		t.Errorf("expected live search untouched, got %s", got)
	}
	if got := rideRepo.GetRide("ride-orphan").Status; got != domain.RideStatusCancelled {
		t.Errorf("expected orphan cancelled, got %s", got)
	}
}

func TestSweeper_EmptyRepository(t *testing.T) {
	sweeper := service.NewSweeper(NewMockRideRepository(), NewMockFeed(), nil, time.Minute, nil)

	swept, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 0 {
		t.Errorf("expected 0, got %d", swept)
	}
}
