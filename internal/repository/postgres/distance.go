package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/sla15/Dropoff/internal/repository"
)

// DistanceCacheRepository implements repository.DistanceCacheRepository
// using PostgreSQL. Keys are coordinates rounded to four decimal places,
// about eleven meters of precision, so nearby requests share one entry.
type DistanceCacheRepository struct {
	db *sql.DB
}

// NewDistanceCacheRepository creates a new DistanceCacheRepository.
func NewDistanceCacheRepository(db *sql.DB) *DistanceCacheRepository {
	return &DistanceCacheRepository{db: db}
}

// Round4 rounds a coordinate to four decimal places, the cache key grain.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Lookup returns the cached distance for the rounded coordinate key.
func (r *DistanceCacheRepository) Lookup(ctx context.Context, originLat, originLng, destLat, destLng float64) (*repository.RouteDistance, error) {
	query := `
		SELECT distance_km, duration_min FROM distance_cache
		WHERE origin_lat = $1 AND origin_lng = $2 AND dest_lat = $3 AND dest_lng = $4
	`

	var d repository.RouteDistance
	err := r.db.QueryRowContext(ctx, query,
		Round4(originLat), Round4(originLng), Round4(destLat), Round4(destLng),
	).Scan(&d.DistanceKm, &d.DurationMin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Upsert stores a routing result under the rounded coordinate key.
func (r *DistanceCacheRepository) Upsert(ctx context.Context, originLat, originLng, destLat, destLng float64, d repository.RouteDistance) error {
	query := `
		INSERT INTO distance_cache (origin_lat, origin_lng, dest_lat, dest_lng, distance_km, duration_min)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (origin_lat, origin_lng, dest_lat, dest_lng)
		DO UPDATE SET distance_km = EXCLUDED.distance_km, duration_min = EXCLUDED.duration_min
	`
	_, err := r.db.ExecContext(ctx, query,
		Round4(originLat), Round4(originLng), Round4(destLat), Round4(destLng),
		d.DistanceKm, d.DurationMin)
	return err
}
