package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sla15/Dropoff/internal/domain"
)

const driverLocationKey = "drivers:locations"

// DriverLocation represents a driver's position.
type DriverLocation struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// LocationStore handles driver location operations in Redis. Positions live
// in one geo set; per-driver metadata (category, availability) lives in a
// hash next to it.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

func driverMetaKey(driverID string) string {
	return fmt.Sprintf("drivers:meta:%s", driverID)
}

// UpdateLocation stores a driver's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// SetDriverMeta stores the driver's category and availability for search
// filtering.
func (s *LocationStore) SetDriverMeta(ctx context.Context, driverID string, category domain.VehicleCategory, available bool) error {
	return s.client.HSet(ctx, driverMetaKey(driverID), map[string]any{
		"category":  string(category),
		"available": available,
	}).Err()
}

// GetDriverMeta returns the driver's category and availability. A driver
// with no meta hash is treated as unavailable.
func (s *LocationStore) GetDriverMeta(ctx context.Context, driverID string) (domain.VehicleCategory, bool, error) {
	fields, err := s.client.HGetAll(ctx, driverMetaKey(driverID)).Result()
	if err != nil {
		return "", false, err
	}
	if len(fields) == 0 {
		return "", false, nil
	}
	return domain.VehicleCategory(fields["category"]), fields["available"] == "1" || fields["available"] == "true", nil
}

// FindNearbyDrivers returns drivers within the given radius (in kilometers),
// nearest first, filtered to available drivers of the requested category.
// Category "any" matches every category.
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, category domain.VehicleCategory) ([]domain.DriverCandidate, error) {
	results, err := s.client.GeoRadius(ctx, driverLocationKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.DriverCandidate, 0, len(results))
	for _, r := range results {
		driverCategory, available, err := s.GetDriverMeta(ctx, r.Name)
		if err != nil {
			return nil, err
		}
		if !available {
			continue
		}
		if category != domain.CategoryAny && driverCategory != category {
			continue
		}
		candidates = append(candidates, domain.DriverCandidate{
			DriverID:   r.Name,
			Lat:        r.Latitude,
			Lng:        r.Longitude,
			DistanceKm: r.Dist,
			Category:   driverCategory,
		})
	}

	return candidates, nil
}

// RemoveLocation removes a driver's location from the geo index.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	return s.client.ZRem(ctx, driverLocationKey, driverID).Err()
}
