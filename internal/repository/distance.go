package repository

import "context"

// RouteDistance is a cached routing result between two coordinate pairs.
type RouteDistance struct {
	DistanceKm  float64
	DurationMin float64
}

// DistanceCacheRepository is a lookaside cache for routing results, keyed by
// origin and destination coordinates rounded to four decimal places.
type DistanceCacheRepository interface {
	// Lookup returns the cached distance for the rounded coordinate key.
	// Returns ErrNotFound on a cache miss.
	Lookup(ctx context.Context, originLat, originLng, destLat, destLng float64) (*RouteDistance, error)

	// Upsert stores a routing result under the rounded coordinate key,
	// replacing any previous entry.
	Upsert(ctx context.Context, originLat, originLng, destLat, destLng float64, d RouteDistance) error
}
