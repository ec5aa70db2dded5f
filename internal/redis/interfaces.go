package redis

import (
	"context"
	"time"

	"github.com/sla15/Dropoff/internal/domain"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	SetDriverMeta(ctx context.Context, driverID string, category domain.VehicleCategory, available bool) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, category domain.VehicleCategory) ([]domain.DriverCandidate, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error)
	ReleaseDriverLock(ctx context.Context, driverID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
)
