package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/service"
)

func TestFindCandidates_FiltersByCategory(t *testing.T) {
	ctx := context.Background()

	locationStore := NewMockLocationStore()
	locationStore.AddDriver("driver-economy", 1.0, domain.CategoryEconomy)
	locationStore.AddDriver("driver-premium", 1.5, domain.CategoryPremium)

	matcher := NewMockMatcher(locationStore)

	ride := &domain.Ride{
		ID:              "ride-1",
		CustomerID:      "customer-1",
		VehicleCategory: domain.CategoryPremium,
	}

	candidates, err := matcher.FindCandidates(ctx, ride, 5.0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].DriverID != "driver-premium" {
		t.Errorf("expected driver-premium, got %s", candidates[0].DriverID)
	}
}

func TestFindCandidates_AnyCategoryMatchesAll(t *testing.T) {
	ctx := context.Background()

	locationStore := NewMockLocationStore()
	locationStore.AddDriver("driver-economy", 1.0, domain.CategoryEconomy)
	locationStore.AddDriver("driver-scooter", 2.0, domain.CategoryScooter)

	matcher := NewMockMatcher(locationStore)

	ride := &domain.Ride{
		ID:              "ride-1",
		CustomerID:      "customer-1",
		VehicleCategory: domain.CategoryAny,
	}

	candidates, err := matcher.FindCandidates(ctx, ride, 5.0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(candidates))
	}
}

func TestFindCandidates_FiltersSelfMatch(t *testing.T) {
	ctx := context.Background()

	locationStore := NewMockLocationStore()
	// The requesting customer is also registered as a driver nearby.
	locationStore.AddDriver("user-1", 0.5, domain.CategoryEconomy)
	locationStore.AddDriver("driver-2", 1.0, domain.CategoryEconomy)

	matcher := NewMockMatcher(locationStore)

	ride := &domain.Ride{
		ID:              "ride-1",
		CustomerID:      "user-1",
		VehicleCategory: domain.CategoryAny,
	}

	candidates, err := matcher.FindCandidates(ctx, ride, 5.0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].DriverID != "driver-2" {
		t.Errorf("expected driver-2, got %s", candidates[0].DriverID)
	}
}

func TestFindCandidates_SkipsExcludedDrivers(t *testing.T) {
	ctx := context.Background()

	locationStore := NewMockLocationStore()
	locationStore.AddDriver("driver-1", 1.0, domain.CategoryEconomy)
	locationStore.AddDriver("driver-2", 2.0, domain.CategoryEconomy)

	matcher := NewMockMatcher(locationStore)

	ride := &domain.Ride{
		ID:              "ride-1",
		CustomerID:      "customer-1",
		VehicleCategory: domain.CategoryAny,
	}

	// driver-1 already got an offer on an earlier tick.
	exclude := map[string]bool{"driver-1": true}

	candidates, err := matcher.FindCandidates(ctx, ride, 5.0, exclude)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].DriverID != "driver-2" {
		t.Errorf("expected driver-2, got %s", candidates[0].DriverID)
	}
}

func TestFindCandidates_RespectsRadius(t *testing.T) {
	ctx := context.Background()

	locationStore := NewMockLocationStore()
	locationStore.AddDriver("driver-near", 1.5, domain.CategoryEconomy)
	locationStore.AddDriver("driver-far", 8.0, domain.CategoryEconomy)

	matcher := NewMockMatcher(locationStore)

	ride := &domain.Ride{
		ID:              "ride-1",
		CustomerID:      "customer-1",
		VehicleCategory: domain.CategoryAny,
	}

	candidates, err := matcher.FindCandidates(ctx, ride, 2.0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate within 2km, got %d", len(candidates))
	}
	if candidates[0].DriverID != "driver-near" {
		t.Errorf("expected driver-near, got %s", candidates[0].DriverID)
	}
}

func TestAccept_ValidatesInput(t *testing.T) {
	ctx := context.Background()

	matcher := service.NewGeoMatcher(nil, NewMockLocationStore(), NewMockLockStore(), nil, NewMockDriverRepository(), NewMockRideRepository())

	if _, err := matcher.Accept(ctx, "", "driver-1"); !errors.Is(err, service.ErrInvalidRideID) {
		t.Errorf("expected ErrInvalidRideID, got %v", err)
	}
	if _, err := matcher.Accept(ctx, "ride-1", ""); !errors.Is(err, service.ErrInvalidDriverID) {
		t.Errorf("expected ErrInvalidDriverID, got %v", err)
	}
}

func TestAccept_RejectsBusyDriver(t *testing.T) {
	ctx := context.Background()

	rideRepo := NewMockRideRepository()
	rideRepo.AddRide(&domain.Ride{
		ID:         "ride-2",
		CustomerID: "customer-2",
		Status:     domain.RideStatusSearching,
	})

	// Already serving another ride; their accept lock from that
	// assignment has long expired.
	driverRepo := NewMockDriverRepository()
	driverRepo.AddDriver(&domain.Driver{
		ID:       "driver-1",
		Category: domain.CategoryEconomy,
		Status:   domain.DriverStatusBusy,
	})

	matcher := service.NewGeoMatcher(nil, NewMockLocationStore(), NewMockLockStore(), nil, driverRepo, rideRepo)

	if _, err := matcher.Accept(ctx, "ride-2", "driver-1"); !errors.Is(err, service.ErrDriverUnavailable) {
		t.Errorf("expected ErrDriverUnavailable, got %v", err)
	}
}

func TestAccept_RejectsOfflineDriver(t *testing.T) {
	ctx := context.Background()

	rideRepo := NewMockRideRepository()
	rideRepo.AddRide(&domain.Ride{
		ID:         "ride-1",
		CustomerID: "customer-1",
		Status:     domain.RideStatusSearching,
	})
	driverRepo := NewMockDriverRepository()
	driverRepo.AddDriver(&domain.Driver{
		ID:       "driver-1",
		Category: domain.CategoryEconomy,
		Status:   domain.DriverStatusOffline,
	})

	matcher := service.NewGeoMatcher(nil, NewMockLocationStore(), NewMockLockStore(), nil, driverRepo, rideRepo)

	if _, err := matcher.Accept(ctx, "ride-1", "driver-1"); !errors.Is(err, service.ErrDriverUnavailable) {
		t.Errorf("expected ErrDriverUnavailable, got %v", err)
	}
}

func TestAccept_RejectsSelfMatch(t *testing.T) {
	ctx := context.Background()

	rideRepo := NewMockRideRepository()
	rideRepo.AddRide(&domain.Ride{
		ID:         "ride-1",
		CustomerID: "user-1",
		Status:     domain.RideStatusSearching,
	})

	matcher := service.NewGeoMatcher(nil, NewMockLocationStore(), NewMockLockStore(), nil, NewMockDriverRepository(), rideRepo)

	// The customer accepting their own request must be refused.
	_, err := matcher.Accept(ctx, "ride-1", "user-1")
	if !errors.Is(err, service.ErrSelfMatch) {
		t.Errorf("expected ErrSelfMatch, got %v", err)
	}
}

func TestAccept_RideAlreadyTaken(t *testing.T) {
	ctx := context.Background()

	rideRepo := NewMockRideRepository()
	rideRepo.AddRide(&domain.Ride{
		ID:         "ride-1",
		CustomerID: "customer-1",
		DriverID:   "driver-1",
		Status:     domain.RideStatusAccepted,
	})

	matcher := service.NewGeoMatcher(nil, NewMockLocationStore(), NewMockLockStore(), nil, NewMockDriverRepository(), rideRepo)

	_, err := matcher.Accept(ctx, "ride-1", "driver-2")
	if !errors.Is(err, service.ErrRideTaken) {
		t.Errorf("expected ErrRideTaken, got %v", err)
	}
}

func TestAccept_DriverMidAssignment(t *testing.T) {
	ctx := context.Background()

	rideRepo := NewMockRideRepository()
	rideRepo.AddRide(&domain.Ride{
		ID:         "ride-1",
		CustomerID: "customer-1",
		Status:     domain.RideStatusSearching,
	})

	driverRepo := NewMockDriverRepository()
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusAvailable})

	lockStore := NewMockLockStore()
	// Driver-1 is in the middle of an accept on some other ride.
	lockStore.AcquireDriverLock(ctx, "driver-1", 10*time.Second)

	matcher := service.NewGeoMatcher(nil, NewMockLocationStore(), lockStore, nil, driverRepo, rideRepo)

	_, err := matcher.Accept(ctx, "ride-1", "driver-1")
	if !errors.Is(err, service.ErrRideTaken) {
		t.Errorf("expected ErrRideTaken, got %v", err)
	}
}

func TestDriverLocking_AcquireLock(t *testing.T) {
	ctx := context.Background()
	lockStore := NewMockLockStore()

	driverID := "driver-1"

	// First lock should succeed.
	acquired, err := lockStore.AcquireDriverLock(ctx, driverID, 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire lock")
	}

	// Verify driver is locked.
	if !lockStore.IsLocked(driverID) {
		t.Error("expected driver to be locked")
	}
}

func TestDriverLocking_CannotAcquireLockedDriver(t *testing.T) {
	ctx := context.Background()
	lockStore := NewMockLockStore()

	driverID := "driver-1"

	// First lock.
	acquired1, _ := lockStore.AcquireDriverLock(ctx, driverID, 10*time.Second)
	if !acquired1 {
		t.Fatal("expected first lock to succeed")
	}

	// Second lock should fail.
	acquired2, err := lockStore.AcquireDriverLock(ctx, driverID, 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired2 {
		t.Error("expected second lock to fail")
	}
}

func TestDriverLocking_ReleaseLock(t *testing.T) {
	ctx := context.Background()
	lockStore := NewMockLockStore()

	driverID := "driver-1"

	// Acquire lock.
	lockStore.AcquireDriverLock(ctx, driverID, 10*time.Second)

	// Release lock.
	err := lockStore.ReleaseDriverLock(ctx, driverID)
	if err != nil {
		t.Fatalf("unexpected error releasing lock: %v", err)
	}

	// Should be able to acquire again.
	acquired, _ := lockStore.AcquireDriverLock(ctx, driverID, 10*time.Second)
	if !acquired {
		t.Error("expected to acquire lock after release")
	}
}

func TestDriverLocking_ConcurrentLockAttempts(t *testing.T) {
	ctx := context.Background()
	lockStore := NewMockLockStore()

	driverID := "driver-1"
	numGoroutines := 10
	successCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			acquired, err := lockStore.AcquireDriverLock(ctx, driverID, 10*time.Second)
			if err != nil {
				return
			}
			if acquired {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Only one goroutine should have acquired the lock.
	if successCount != 1 {
		t.Errorf("expected exactly 1 successful lock, got %d", successCount)
	}
}
