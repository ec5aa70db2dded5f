package service

import (
	"context"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/redis"
	"github.com/sla15/Dropoff/internal/repository"
)

// DriverService handles driver presence: position updates and availability.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    *redis.CacheStore
	driverRepo    repository.DriverRepository
	feed          *redis.FeedStore
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	cacheStore *redis.CacheStore,
	driverRepo repository.DriverRepository,
	feed *redis.FeedStore,
) *DriverService {
	return &DriverService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		feed:          feed,
	}
}

// UpdateLocation stores a driver's position and marks them reachable for
// searches. Position is also fanned out to the live positions feed.
func (s *DriverService) UpdateLocation(ctx context.Context, pos domain.DriverPosition) error {
	if pos.DriverID == "" {
		return ErrInvalidDriverID
	}

	if !isValidLatitude(pos.Lat) || !isValidLongitude(pos.Lng) {
		return ErrInvalidLocation
	}

	if err := s.locationStore.UpdateLocation(ctx, pos.DriverID, pos.Lat, pos.Lng); err != nil {
		return err
	}

	if s.feed != nil {
		_ = s.feed.PublishDriverPosition(ctx, pos)
	}
	return nil
}

// SetAvailable marks a driver as taking requests. Their category is pinned
// in the geo metadata so searches can filter without a database trip.
func (s *DriverService) SetAvailable(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}

	if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusAvailable); err != nil {
		return err
	}
	if err := s.locationStore.SetDriverMeta(ctx, driverID, driver.Category, true); err != nil {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, driverID)
	}
	return nil
}

// SetOffline takes a driver out of rotation and drops them from the geo
// index.
func (s *DriverService) SetOffline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
		return err
	}

	if err := s.locationStore.SetDriverMeta(ctx, driverID, "", false); err != nil {
		return err
	}
	if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, driverID)
	}

	return nil
}

// GetProfile returns a driver profile, served from cache when possible.
func (s *DriverService) GetProfile(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	if s.cacheStore != nil {
		cached, err := s.cacheStore.GetDriver(ctx, driverID)
		if err == nil && cached != nil {
			return &domain.Driver{
				ID:       cached.ID,
				Name:     cached.Name,
				Vehicle:  cached.Vehicle,
				Plate:    cached.Plate,
				Category: domain.VehicleCategory(cached.Category),
				Rating:   cached.Rating,
			}, nil
		}
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.SetDriver(ctx, &redis.CachedDriver{
			ID:       driver.ID,
			Name:     driver.Name,
			Vehicle:  driver.Vehicle,
			Plate:    driver.Plate,
			Category: string(driver.Category),
			Rating:   driver.Rating,
		})
	}
	return driver, nil
}
