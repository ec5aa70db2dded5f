package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"github.com/sla15/Dropoff/internal/config"
	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/observability"
	"github.com/sla15/Dropoff/internal/repository"
)

// DirectionsProvider produces road distances and resolves addresses.
type DirectionsProvider interface {
	// Route returns the driving distance and duration from origin to
	// dest. Returns ErrRouteUnavailable when no road route exists.
	Route(ctx context.Context, origin, dest domain.Waypoint) (repository.RouteDistance, error)

	// Geocode resolves an address to coordinates.
	Geocode(ctx context.Context, address string) (domain.Waypoint, error)
}

// GoogleDirections implements DirectionsProvider on the Google Maps API.
type GoogleDirections struct {
	client  *maps.Client
	timeout time.Duration
}

// NewGoogleDirections creates a provider backed by the Maps API.
func NewGoogleDirections(cfg config.MapsConfig) (*GoogleDirections, error) {
	client, err := maps.NewClient(maps.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &GoogleDirections{client: client, timeout: cfg.Timeout}, nil
}

// Route returns the driving distance and duration for one leg.
func (g *GoogleDirections) Route(ctx context.Context, origin, dest domain.Waypoint) (repository.RouteDistance, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", dest.Lat, dest.Lng),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return repository.RouteDistance{}, fmt.Errorf("directions: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return repository.RouteDistance{}, ErrRouteUnavailable
	}

	var meters int
	var duration time.Duration
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
		duration += leg.Duration
	}
	return repository.RouteDistance{
		DistanceKm:  float64(meters) / 1000,
		DurationMin: duration.Minutes(),
	}, nil
}

// Geocode resolves an address to coordinates.
func (g *GoogleDirections) Geocode(ctx context.Context, address string) (domain.Waypoint, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return domain.Waypoint{}, fmt.Errorf("geocode: %w", err)
	}
	if len(results) == 0 {
		return domain.Waypoint{}, ErrGeocodeFailure
	}
	loc := results[0].Geometry.Location
	return domain.Waypoint{
		Address: results[0].FormattedAddress,
		Lat:     loc.Lat,
		Lng:     loc.Lng,
	}, nil
}

// RouteResolver computes trip distances with a lookaside cache in front of
// the directions provider. Legs are cached independently under their
// rounded coordinate pair, so repeated trips between the same points skip
// the provider entirely.
type RouteResolver struct {
	provider DirectionsProvider
	cache    repository.DistanceCacheRepository
	metrics  *observability.Metrics
}

// NewRouteResolver creates a RouteResolver.
func NewRouteResolver(provider DirectionsProvider, cache repository.DistanceCacheRepository, metrics *observability.Metrics) *RouteResolver {
	return &RouteResolver{provider: provider, cache: cache, metrics: metrics}
}

// ResolveAddress geocodes an address into a waypoint.
func (r *RouteResolver) ResolveAddress(ctx context.Context, address string) (domain.Waypoint, error) {
	return r.provider.Geocode(ctx, address)
}

// Distance returns the total road distance and duration from pickup through
// every stop in order.
func (r *RouteResolver) Distance(ctx context.Context, pickup domain.Waypoint, stops []domain.Waypoint) (repository.RouteDistance, error) {
	if len(stops) == 0 {
		return repository.RouteDistance{}, ErrInvalidStops
	}

	var total repository.RouteDistance
	prev := pickup
	for _, stop := range stops {
		leg, err := r.leg(ctx, prev, stop)
		if err != nil {
			return repository.RouteDistance{}, err
		}
		total.DistanceKm += leg.DistanceKm
		total.DurationMin += leg.DurationMin
		prev = stop
	}
	return total, nil
}

func (r *RouteResolver) leg(ctx context.Context, origin, dest domain.Waypoint) (repository.RouteDistance, error) {
	cached, err := r.cache.Lookup(ctx, origin.Lat, origin.Lng, dest.Lat, dest.Lng)
	if err == nil {
		if r.metrics != nil {
			r.metrics.RouteCacheHits.Inc()
		}
		return *cached, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return repository.RouteDistance{}, err
	}

	if r.metrics != nil {
		r.metrics.RouteCacheMisses.Inc()
	}
	leg, err := r.provider.Route(ctx, origin, dest)
	if err != nil {
		return repository.RouteDistance{}, err
	}

	// A failed cache write costs a provider call next time, nothing more.
	_ = r.cache.Upsert(ctx, origin.Lat, origin.Lng, dest.Lat, dest.Lng, leg)

	return leg, nil
}
