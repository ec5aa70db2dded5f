package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/redis"
	"github.com/sla15/Dropoff/internal/repository"
	"github.com/sla15/Dropoff/internal/repository/postgres"
)

const (
	driverLockTTL = 10 * time.Second
	rideLockTTL   = 30 * time.Second // Lock ride during accept
)

// GeoMatcher finds candidate drivers around a pickup point and performs the
// atomic hand-off when one of them accepts.
type GeoMatcher struct {
	db            *sql.DB
	locationStore redis.LocationStoreInterface
	lockStore     redis.LockStoreInterface
	cacheStore    *redis.CacheStore
	driverRepo    repository.DriverRepository
	rideRepo      repository.RideRepository
}

// NewGeoMatcher creates a new GeoMatcher.
func NewGeoMatcher(
	db *sql.DB,
	locationStore redis.LocationStoreInterface,
	lockStore redis.LockStoreInterface,
	cacheStore *redis.CacheStore,
	driverRepo repository.DriverRepository,
	rideRepo repository.RideRepository,
) *GeoMatcher {
	return &GeoMatcher{
		db:            db,
		locationStore: locationStore,
		lockStore:     lockStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		rideRepo:      rideRepo,
	}
}

// FindCandidates returns available drivers within radiusKm of the ride's
// pickup, nearest first. Drivers in exclude and the requesting customer
// themselves are filtered out.
func (m *GeoMatcher) FindCandidates(ctx context.Context, ride *domain.Ride, radiusKm float64, exclude map[string]bool) ([]domain.DriverCandidate, error) {
	nearby, err := m.locationStore.FindNearbyDrivers(ctx, ride.Pickup.Lat, ride.Pickup.Lng, radiusKm, ride.VehicleCategory)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.DriverCandidate, 0, len(nearby))
	for _, c := range nearby {
		if c.DriverID == ride.CustomerID {
			continue
		}
		if exclude[c.DriverID] {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// AcceptResult carries the assigned ride and the driver profile that the
// customer is shown after a match.
type AcceptResult struct {
	Ride   *domain.Ride
	Driver *domain.Driver
}

// Accept assigns driverID to the ride if it is still searching. The first
// driver to get through wins; everyone else gets ErrRideTaken.
func (m *GeoMatcher) Accept(ctx context.Context, rideID, driverID string) (*AcceptResult, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	// Short-circuit racing accepts before they hit the database. The
	// conditional update below is still the source of truth.
	if m.cacheStore != nil {
		locked, err := m.cacheStore.AcquireRideLock(ctx, rideID, rideLockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, ErrRideTaken
		}
		defer m.cacheStore.ReleaseRideLock(ctx, rideID)
	}

	ride, err := m.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.CustomerID == driverID {
		return nil, ErrSelfMatch
	}
	if ride.Status != domain.RideStatusSearching {
		return nil, ErrRideTaken
	}

	driver, err := m.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	// The accept lock only covers the assignment window; a driver already
	// serving a ride holds no lock but must still be turned away, or one
	// driver ends up on two rides.
	if driver.Status != domain.DriverStatusAvailable {
		return nil, ErrDriverUnavailable
	}

	locked, err := m.lockStore.AcquireDriverLock(ctx, driverID, driverLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		// Driver is mid-assignment on another ride.
		return nil, ErrRideTaken
	}

	if err := m.assign(ctx, ride, driver); err != nil {
		_ = m.lockStore.ReleaseDriverLock(ctx, driverID)
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRideTaken
		}
		return nil, err
	}

	// Take the driver out of searches right away; the geo index is what
	// dispatch ticks read.
	_ = m.locationStore.SetDriverMeta(ctx, driverID, driver.Category, false)

	if m.cacheStore != nil {
		_ = m.cacheStore.InvalidateRide(ctx, rideID)
		_ = m.cacheStore.InvalidateDriver(ctx, driverID)
	}

	ride.DriverID = driverID
	ride.Status = domain.RideStatusAccepted

	// Driver lock expires via TTL.
	return &AcceptResult{Ride: ride, Driver: driver}, nil
}

// assign writes the assignment and the driver's busy status in one
// transaction. The conditional update inside Assign enforces
// first-accept-wins.
func (m *GeoMatcher) assign(ctx context.Context, ride *domain.Ride, driver *domain.Driver) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txRideRepo := postgres.NewRideRepositoryWithTx(tx)
	txDriverRepo := postgres.NewDriverRepositoryWithTx(tx)

	if err = txRideRepo.Assign(ctx, ride.ID, driver.ID); err != nil {
		return err
	}

	if err = txDriverRepo.UpdateStatus(ctx, driver.ID, domain.DriverStatusBusy); err != nil {
		return err
	}

	return tx.Commit()
}
