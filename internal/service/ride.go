package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/observability"
	"github.com/sla15/Dropoff/internal/repository"
)

// MatcherInterface defines the matcher contract the coordinator needs.
// This interface allows for testing with mock implementations.
type MatcherInterface interface {
	CandidateFinder
	Accept(ctx context.Context, rideID, driverID string) (*AcceptResult, error)
}

// Ensure GeoMatcher implements MatcherInterface.
var _ MatcherInterface = (*GeoMatcher)(nil)

// RideService coordinates the whole ride flow: it quotes and persists new
// requests, drives the dispatch search, and funnels every later signal
// through the lifecycle table.
type RideService struct {
	rideRepo     repository.RideRepository
	customerRepo repository.CustomerRepository
	matcher      MatcherInterface
	router       *RouteResolver
	pricing      *PricingEngine
	dispatch     *DispatchLoop
	lifecycle    *RideLifecycle
	notifier     Notifier
	feed         FeedPublisher
	metrics      *observability.Metrics
}

// NewRideService creates a new RideService.
func NewRideService(
	rideRepo repository.RideRepository,
	customerRepo repository.CustomerRepository,
	matcher MatcherInterface,
	router *RouteResolver,
	pricing *PricingEngine,
	dispatch *DispatchLoop,
	lifecycle *RideLifecycle,
	notifier Notifier,
	feed FeedPublisher,
	metrics *observability.Metrics,
) *RideService {
	return &RideService{
		rideRepo:     rideRepo,
		customerRepo: customerRepo,
		matcher:      matcher,
		router:       router,
		pricing:      pricing,
		dispatch:     dispatch,
		lifecycle:    lifecycle,
		notifier:     notifier,
		feed:         feed,
		metrics:      metrics,
	}
}

// CreateRideRequest contains the parameters for requesting a ride. Stops
// may carry coordinates, an address to geocode, or both.
type CreateRideRequest struct {
	CustomerID      string
	Pickup          domain.Waypoint
	Stops           []domain.Waypoint
	RideType        domain.RideType
	VehicleCategory domain.VehicleCategory
}

// CreateRideResponse contains the created ride and its quote breakdown.
type CreateRideResponse struct {
	Ride  *domain.Ride
	Quote Quote
}

// CreateRide quotes and persists a new ride, then starts the driver
// search. The customer may hold only one ride in flight; the database
// enforces that even when two requests race.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*CreateRideResponse, error) {
	if err := s.validateCreateRequest(&req); err != nil {
		return nil, err
	}

	// Fast path before any geocoding or routing spend. The partial unique
	// index still catches requests racing past this check.
	if _, err := s.rideRepo.GetActiveByCustomer(ctx, req.CustomerID); err == nil {
		return nil, ErrActiveRide
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if err := s.resolveWaypoints(ctx, &req); err != nil {
		return nil, err
	}

	distance, err := s.router.Distance(ctx, req.Pickup, req.Stops)
	if err != nil {
		return nil, err
	}

	customer, err := s.customerRepo.GetByID(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	quote := s.pricing.Price(req.RideType, req.VehicleCategory, distance.DistanceKm, customer.CreditCents)

	ride := &domain.Ride{
		ID:              uuid.New().String(),
		CustomerID:      req.CustomerID,
		Pickup:          req.Pickup,
		Stops:           req.Stops,
		RideType:        req.RideType,
		VehicleCategory: req.VehicleCategory,
		DistanceKm:      distance.DistanceKm,
		DurationMin:     distance.DurationMin,
		PriceQuoted:     quote.FinalPrice,
		CreditApplied:   quote.Credit,
		Status:          domain.RideStatusSearching,
		CreatedAt:       time.Now(),
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrActiveRide
		}
		return nil, err
	}

	// The search outlives the request that created it.
	s.dispatch.Start(context.Background(), ride, SearchCallbacks{OnExhausted: s.onSearchExhausted})

	return &CreateRideResponse{Ride: ride, Quote: quote}, nil
}

// onSearchExhausted cancels a ride whose search ran out of road. Going
// through the lifecycle publishes the cancelled status on the ride's feed
// and drops the cached entry, the same as any other terminal event.
func (s *RideService) onSearchExhausted(ctx context.Context, ride *domain.Ride) {
	if _, err := s.lifecycle.Apply(ctx, ride.ID, domain.EventNoDriversFound); err != nil {
		log.Printf("ride %s: exhausted search cancel: %v", ride.ID, err)
	}
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return s.rideRepo.GetByID(ctx, rideID)
}

// Accept matches a driver to a searching ride. The first driver through
// wins; the search stops and the customer learns who is coming.
func (s *RideService) Accept(ctx context.Context, rideID, driverID string) (*AcceptResult, error) {
	result, err := s.matcher.Accept(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}

	s.dispatch.Stop(rideID)

	if s.metrics != nil {
		s.metrics.RidesMatched.Inc()
	}
	if s.feed != nil {
		_ = s.feed.PublishRideChange(ctx, domain.RideChange{
			RideID:   rideID,
			Event:    domain.EventAccepted,
			Status:   domain.RideStatusAccepted,
			DriverID: driverID,
		})
	}
	if s.notifier != nil {
		_ = s.notifier.NotifyDriverAssigned(ctx, result.Ride, result.Driver)
	}

	return result, nil
}

// SignalArrived records that the driver reached the pickup point.
func (s *RideService) SignalArrived(ctx context.Context, rideID string) (*domain.Ride, error) {
	return s.lifecycle.Apply(ctx, rideID, domain.EventArrived)
}

// SignalStarted records that the trip began.
func (s *RideService) SignalStarted(ctx context.Context, rideID string) (*domain.Ride, error) {
	return s.lifecycle.Apply(ctx, rideID, domain.EventStarted)
}

// SignalCompleted records that the trip ended.
func (s *RideService) SignalCompleted(ctx context.Context, rideID string) (*domain.Ride, error) {
	return s.lifecycle.Apply(ctx, rideID, domain.EventCompleted)
}

// CancelRide cancels a ride on behalf of the customer or the driver. The
// counterparty's view of the cancellation differs, so the initiator picks
// the event.
func (s *RideService) CancelRide(ctx context.Context, rideID string, byDriver bool) (*domain.Ride, error) {
	event := domain.EventCancelledByCustomer
	if byDriver {
		event = domain.EventCancelledByDriver
	}

	// The search dies the moment cancellation is asked for. Even if the
	// store write below fails, nothing should keep offering this ride.
	s.dispatch.Stop(rideID)

	ride, err := s.lifecycle.Apply(ctx, rideID, event)
	if err != nil {
		return nil, err
	}
	if !ride.Status.IsTerminal() {
		return nil, ErrRideCannotBeCancelled
	}

	return ride, nil
}

// ConfirmExpansion widens the ride's paused search after the customer
// agreed to look further out.
func (s *RideService) ConfirmExpansion(ctx context.Context, rideID string) error {
	if rideID == "" {
		return ErrInvalidRideID
	}
	return s.dispatch.ConfirmExpansion(rideID)
}

// DeclineExpansion ends the ride's paused search.
func (s *RideService) DeclineExpansion(ctx context.Context, rideID string) error {
	if rideID == "" {
		return ErrInvalidRideID
	}
	return s.dispatch.DeclineExpansion(rideID)
}

// SubmitReview stores the customer's post-trip review of the driver.
func (s *RideService) SubmitReview(ctx context.Context, rideID, customerID string, rating int, comment string) error {
	if rideID == "" {
		return ErrInvalidRideID
	}
	if customerID == "" {
		return ErrInvalidCustomerID
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.CustomerID != customerID {
		return repository.ErrNotFound
	}

	return s.customerRepo.SaveReview(ctx, &domain.Review{
		ID:         uuid.New().String(),
		RideID:     rideID,
		ReviewerID: customerID,
		TargetID:   ride.DriverID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now(),
	})
}

// validateCreateRequest validates the create ride request.
func (s *RideService) validateCreateRequest(req *CreateRideRequest) error {
	if req.CustomerID == "" {
		return ErrInvalidCustomerID
	}
	if len(req.Stops) == 0 {
		return ErrInvalidStops
	}
	if req.RideType == "" {
		req.RideType = domain.RideTypeRide
	}
	if req.RideType != domain.RideTypeRide && req.RideType != domain.RideTypeDelivery {
		return ErrInvalidRideType
	}
	if req.VehicleCategory == "" {
		req.VehicleCategory = domain.CategoryAny
	}
	if !domain.ValidCategory(req.VehicleCategory) {
		return ErrInvalidCategory
	}
	return nil
}

// resolveWaypoints fills in coordinates for waypoints that arrived as bare
// addresses, and validates the ones that came with coordinates.
func (s *RideService) resolveWaypoints(ctx context.Context, req *CreateRideRequest) error {
	points := make([]*domain.Waypoint, 0, len(req.Stops)+1)
	points = append(points, &req.Pickup)
	for i := range req.Stops {
		points = append(points, &req.Stops[i])
	}

	for _, p := range points {
		if p.Lat == 0 && p.Lng == 0 {
			if p.Address == "" {
				return ErrInvalidLocation
			}
			resolved, err := s.router.ResolveAddress(ctx, p.Address)
			if err != nil {
				return err
			}
			*p = resolved
			continue
		}
		if !isValidLatitude(p.Lat) || !isValidLongitude(p.Lng) {
			return ErrInvalidLocation
		}
	}
	return nil
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
