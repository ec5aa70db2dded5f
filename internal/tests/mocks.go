package tests

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/repository"
	"github.com/sla15/Dropoff/internal/service"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository. It keeps
// the same single-active-ride and conditional-update semantics as the
// Postgres implementation so races behave the same way in tests.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32
	AssignCallCount       int32

	// Error injection
	CreateError  error
	GetByIDError error
	AssignError  error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if r.CustomerID == ride.CustomerID && !r.Status.IsTerminal() {
			return repository.ErrConflict
		}
	}
	m.rides[ride.ID] = ride
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) GetActiveByCustomer(ctx context.Context, customerID string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rides {
		if r.CustomerID == customerID && !r.Status.IsTerminal() {
			copy := *r
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockRideRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok || ride.Status != from {
		return repository.ErrConflict
	}
	ride.Status = to
	return nil
}

func (m *MockRideRepository) Assign(ctx context.Context, id, driverID string) error {
	atomic.AddInt32(&m.AssignCallCount, 1)
	if m.AssignError != nil {
		return m.AssignError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok || ride.Status != domain.RideStatusSearching {
		return repository.ErrConflict
	}
	ride.DriverID = driverID
	ride.Status = domain.RideStatusAccepted
	return nil
}

func (m *MockRideRepository) Cancel(ctx context.Context, id string, to domain.RideStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok || ride.Status.IsTerminal() {
		return repository.ErrConflict
	}
	ride.Status = to
	ride.CancelledAt = time.Now()
	ride.CancelReason = reason
	return nil
}

func (m *MockRideRepository) ListStaleSearching(ctx context.Context, cutoff time.Time) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Ride
	for _, r := range m.rides {
		if r.Status == domain.RideStatusSearching && r.CreatedAt.Before(cutoff) {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

// GetStatus reads the ride's current status. Satisfies the dispatch loop's
// status reader.
func (m *MockRideRepository) GetStatus(ctx context.Context, rideID string) (domain.RideStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return ride.Status, nil
}

// SetStatus force-sets a ride's status (for test setup).
func (m *MockRideRepository) SetStatus(rideID string, status domain.RideStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ride, ok := m.rides[rideID]; ok {
		ride.Status = status
	}
}

// GetRide returns the ride by ID (for test assertions).
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rides[id]
}

// CountRides returns the number of rides.
func (m *MockRideRepository) CountRides() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rides)
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	UpdateStatusCallCount int32

	// Error injection
	UpdateStatusError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

// GetDriver returns driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

// ──────────────────────────────────────────────
// MOCK CUSTOMER REPOSITORY
// ──────────────────────────────────────────────

// MockCustomerRepository is a mock implementation of CustomerRepository.
type MockCustomerRepository struct {
	mu        sync.RWMutex
	customers map[string]*domain.Customer
	reviews   []*domain.Review

	// Counters
	DeductCreditCallCount int32
	SaveReviewCallCount   int32

	// Error injection
	DeductCreditError error
}

// NewMockCustomerRepository creates a new mock customer repository.
func NewMockCustomerRepository() *MockCustomerRepository {
	return &MockCustomerRepository{
		customers: make(map[string]*domain.Customer),
	}
}

// AddCustomer adds a customer to the mock repository.
func (m *MockCustomerRepository) AddCustomer(customer *domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[customer.ID] = customer
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	customer, ok := m.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *customer
	return &copy, nil
}

func (m *MockCustomerRepository) DeductCredit(ctx context.Context, id string, amount int64) error {
	atomic.AddInt32(&m.DeductCreditCallCount, 1)
	if m.DeductCreditError != nil {
		return m.DeductCreditError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.customers[id]
	if !ok || customer.CreditCents < amount {
		return repository.ErrConflict
	}
	customer.CreditCents -= amount
	return nil
}

func (m *MockCustomerRepository) SaveReview(ctx context.Context, review *domain.Review) error {
	atomic.AddInt32(&m.SaveReviewCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, review)
	return nil
}

// GetCustomer returns customer for assertions.
func (m *MockCustomerRepository) GetCustomer(id string) *domain.Customer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.customers[id]
}

// Reviews returns stored reviews for assertions.
func (m *MockCustomerRepository) Reviews() []*domain.Review {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Review, len(m.reviews))
	copy(result, m.reviews)
	return result
}

// ──────────────────────────────────────────────
// MOCK DISTANCE CACHE
// ──────────────────────────────────────────────

type cacheKey struct {
	olat, olng, dlat, dlng float64
}

// MockDistanceCache is an in-memory DistanceCacheRepository.
type MockDistanceCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]repository.RouteDistance

	// Counters
	LookupCallCount int32
	UpsertCallCount int32
}

// NewMockDistanceCache creates a new mock distance cache.
func NewMockDistanceCache() *MockDistanceCache {
	return &MockDistanceCache{
		entries: make(map[cacheKey]repository.RouteDistance),
	}
}

func round4(v float64) float64 {
	// Same grain as the Postgres implementation.
	return math.Round(v*10000) / 10000
}

func (m *MockDistanceCache) Lookup(ctx context.Context, originLat, originLng, destLat, destLng float64) (*repository.RouteDistance, error) {
	atomic.AddInt32(&m.LookupCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.entries[cacheKey{round4(originLat), round4(originLng), round4(destLat), round4(destLng)}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (m *MockDistanceCache) Upsert(ctx context.Context, originLat, originLng, destLat, destLng float64, d repository.RouteDistance) error {
	atomic.AddInt32(&m.UpsertCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cacheKey{round4(originLat), round4(originLng), round4(destLat), round4(destLng)}] = d
	return nil
}

// Size returns the number of cached legs.
func (m *MockDistanceCache) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

type mockDriverPresence struct {
	loc       domain.DriverCandidate
	available bool
}

// MockLocationStore is a mock implementation of LocationStoreInterface.
// Filtering by distance uses the stored DistanceKm directly instead of real
// geo math.
type MockLocationStore struct {
	mu      sync.RWMutex
	drivers map[string]*mockDriverPresence

	// Counters
	UpdateLocationCallCount    int32
	FindNearbyDriversCallCount int32

	// Error injection
	UpdateLocationError    error
	FindNearbyDriversError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		drivers: make(map[string]*mockDriverPresence),
	}
}

// AddDriver places an available driver at the given distance from any
// searched point.
func (m *MockLocationStore) AddDriver(driverID string, distanceKm float64, category domain.VehicleCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driverID] = &mockDriverPresence{
		loc: domain.DriverCandidate{
			DriverID:   driverID,
			DistanceKm: distanceKm,
			Category:   category,
		},
		available: true,
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateLocationError != nil {
		return m.UpdateLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.drivers[driverID]
	if !ok {
		p = &mockDriverPresence{available: true}
		p.loc.DriverID = driverID
		m.drivers[driverID] = p
	}
	p.loc.Lat = lat
	p.loc.Lng = lng
	return nil
}

func (m *MockLocationStore) SetDriverMeta(ctx context.Context, driverID string, category domain.VehicleCategory, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.drivers[driverID]
	if !ok {
		p = &mockDriverPresence{}
		p.loc.DriverID = driverID
		m.drivers[driverID] = p
	}
	p.loc.Category = category
	p.available = available
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, category domain.VehicleCategory) ([]domain.DriverCandidate, error) {
	atomic.AddInt32(&m.FindNearbyDriversCallCount, 1)
	if m.FindNearbyDriversError != nil {
		return nil, m.FindNearbyDriversError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.DriverCandidate
	for _, p := range m.drivers {
		if !p.available || p.loc.DistanceKm > radiusKm {
			continue
		}
		if category != domain.CategoryAny && p.loc.Category != category {
			continue
		}
		result = append(result, p.loc)
	}
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	return nil
}

// HasDriver checks if a driver is present in the store.
func (m *MockLocationStore) HasDriver(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.drivers[driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:driver:" + driverID
	if expiry, exists := m.locks[key]; exists {
		if time.Now().Before(expiry) {
			return false, nil // Lock still held.
		}
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseDriverLock(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:driver:"+driverID)
	return nil
}

// IsLocked checks if a driver is currently locked.
func (m *MockLockStore) IsLocked(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:driver:"+driverID]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier records every notification so tests can assert on offer
// dedup and prompt delivery.
type MockNotifier struct {
	mu sync.Mutex

	Offers           []string // driver IDs, in order
	OfferRides       []string // ride IDs matching Offers
	AssignedCount    int32
	CancelledCount   int32
	CompletedCount   int32
	ExpansionPrompts []float64
	NoDriversCount   int32

	// Error injection
	OfferError error
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyRideOffer(ctx context.Context, ride *domain.Ride, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OfferError != nil {
		return m.OfferError
	}
	m.Offers = append(m.Offers, driverID)
	m.OfferRides = append(m.OfferRides, ride.ID)
	return nil
}

func (m *MockNotifier) NotifyDriverAssigned(ctx context.Context, ride *domain.Ride, driver *domain.Driver) error {
	atomic.AddInt32(&m.AssignedCount, 1)
	return nil
}

func (m *MockNotifier) NotifyRideCancelled(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CancelledCount, 1)
	return nil
}

func (m *MockNotifier) NotifyRideCompleted(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CompletedCount, 1)
	return nil
}

func (m *MockNotifier) NotifyExpansionPrompt(ctx context.Context, ride *domain.Ride, nextRadiusKm float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExpansionPrompts = append(m.ExpansionPrompts, nextRadiusKm)
	return nil
}

func (m *MockNotifier) NotifyNoDriversFound(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.NoDriversCount, 1)
	return nil
}

// OfferedDrivers returns a copy of the offer log.
func (m *MockNotifier) OfferedDrivers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.Offers))
	copy(result, m.Offers)
	return result
}

// PromptCount returns how many expansion prompts were sent.
func (m *MockNotifier) PromptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ExpansionPrompts)
}

// ──────────────────────────────────────────────
// MOCK FEED
// ──────────────────────────────────────────────

// MockFeed records published ride changes.
type MockFeed struct {
	mu      sync.Mutex
	changes []domain.RideChange
}

// NewMockFeed creates a new mock feed publisher.
func NewMockFeed() *MockFeed {
	return &MockFeed{}
}

func (m *MockFeed) PublishRideChange(ctx context.Context, change domain.RideChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, change)
	return nil
}

// Changes returns a copy of published changes.
func (m *MockFeed) Changes() []domain.RideChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.RideChange, len(m.changes))
	copy(result, m.changes)
	return result
}

// LastChange returns the most recent change, or a zero value.
func (m *MockFeed) LastChange() domain.RideChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.changes) == 0 {
		return domain.RideChange{}
	}
	return m.changes[len(m.changes)-1]
}

// ──────────────────────────────────────────────
// MOCK DIRECTIONS PROVIDER
// ──────────────────────────────────────────────

// MockDirections is a DirectionsProvider with scripted results.
type MockDirections struct {
	mu sync.Mutex

	DistanceKm  float64
	DurationMin float64
	RouteError  error

	Geocoded map[string]domain.Waypoint

	// Counters
	RouteCallCount   int32
	GeocodeCallCount int32
}

// NewMockDirections creates a provider returning the given leg distance.
func NewMockDirections(distanceKm, durationMin float64) *MockDirections {
	return &MockDirections{
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
		Geocoded:    make(map[string]domain.Waypoint),
	}
}

func (m *MockDirections) Route(ctx context.Context, origin, dest domain.Waypoint) (repository.RouteDistance, error) {
	atomic.AddInt32(&m.RouteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RouteError != nil {
		return repository.RouteDistance{}, m.RouteError
	}
	return repository.RouteDistance{DistanceKm: m.DistanceKm, DurationMin: m.DurationMin}, nil
}

func (m *MockDirections) Geocode(ctx context.Context, address string) (domain.Waypoint, error) {
	atomic.AddInt32(&m.GeocodeCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	wp, ok := m.Geocoded[address]
	if !ok {
		return domain.Waypoint{}, service.ErrGeocodeFailure
	}
	return wp, nil
}

// ──────────────────────────────────────────────
// MOCK MATCHER
// ──────────────────────────────────────────────

// MockMatcher is a MatcherInterface with a scripted Accept result on top of
// repository-backed candidate lookup.
type MockMatcher struct {
	Locations *MockLocationStore

	AcceptResult *service.AcceptResult
	AcceptError  error

	AcceptCallCount int32
}

// NewMockMatcher creates a matcher over the given location store.
func NewMockMatcher(locations *MockLocationStore) *MockMatcher {
	return &MockMatcher{Locations: locations}
}

func (m *MockMatcher) FindCandidates(ctx context.Context, ride *domain.Ride, radiusKm float64, exclude map[string]bool) ([]domain.DriverCandidate, error) {
	nearby, err := m.Locations.FindNearbyDrivers(ctx, ride.Pickup.Lat, ride.Pickup.Lng, radiusKm, ride.VehicleCategory)
	if err != nil {
		return nil, err
	}
	var result []domain.DriverCandidate
	for _, c := range nearby {
		if c.DriverID == ride.CustomerID || exclude[c.DriverID] {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func (m *MockMatcher) Accept(ctx context.Context, rideID, driverID string) (*service.AcceptResult, error) {
	atomic.AddInt32(&m.AcceptCallCount, 1)
	if m.AcceptError != nil {
		return nil, m.AcceptError
	}
	return m.AcceptResult, nil
}

// ──────────────────────────────────────────────
// MOCK EVENT SOURCE
// ──────────────────────────────────────────────

// MockEventStream feeds scripted events to a subscription, then blocks
// until the context ends or FailNow is called.
type MockEventStream struct {
	events chan eventOrError
	closed int32
}

type eventOrError struct {
	change domain.RideChange
	err    error
}

// NewMockEventStream creates an empty stream.
func NewMockEventStream() *MockEventStream {
	return &MockEventStream{events: make(chan eventOrError, 16)}
}

// Emit queues an event for delivery.
func (s *MockEventStream) Emit(change domain.RideChange) {
	s.events <- eventOrError{change: change}
}

// Fail queues a connection error, which ends the stream.
func (s *MockEventStream) Fail(err error) {
	s.events <- eventOrError{err: err}
}

func (s *MockEventStream) Next(ctx context.Context) (domain.RideChange, error) {
	select {
	case <-ctx.Done():
		return domain.RideChange{}, ctx.Err()
	case e := <-s.events:
		return e.change, e.err
	}
}

func (s *MockEventStream) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	return nil
}

// Closed reports whether Close was called.
func (s *MockEventStream) Closed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}

// MockPositionStream feeds scripted position fixes to a subscription, then
// blocks until the context ends.
type MockPositionStream struct {
	fixes  chan positionOrError
	closed int32
}

type positionOrError struct {
	pos domain.DriverPosition
	err error
}

// NewMockPositionStream creates an empty stream.
func NewMockPositionStream() *MockPositionStream {
	return &MockPositionStream{fixes: make(chan positionOrError, 16)}
}

// Emit queues a position fix for delivery.
func (s *MockPositionStream) Emit(pos domain.DriverPosition) {
	s.fixes <- positionOrError{pos: pos}
}

// Fail queues a connection error, which ends the stream.
func (s *MockPositionStream) Fail(err error) {
	s.fixes <- positionOrError{err: err}
}

func (s *MockPositionStream) Next(ctx context.Context) (domain.DriverPosition, error) {
	select {
	case <-ctx.Done():
		return domain.DriverPosition{}, ctx.Err()
	case e := <-s.fixes:
		return e.pos, e.err
	}
}

func (s *MockPositionStream) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	return nil
}

// MockEventSource hands out streams in order, one per open.
type MockEventSource struct {
	mu        sync.Mutex
	streams   []*MockEventStream
	positions []*MockPositionStream
	opens     int32

	// Error injection for the next Open call
	OpenError error
}

// NewMockEventSource creates a source that serves the given streams.
func NewMockEventSource(streams ...*MockEventStream) *MockEventSource {
	return &MockEventSource{streams: streams}
}

// AddPositionStream queues a positions stream for the next
// OpenDriverPositions call.
func (m *MockEventSource) AddPositionStream(s *MockPositionStream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, s)
}

func (m *MockEventSource) OpenDriverPositions(ctx context.Context) (service.PositionStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.positions) == 0 {
		return nil, errors.New("mock: no more position streams")
	}
	s := m.positions[0]
	m.positions = m.positions[1:]
	return s, nil
}

func (m *MockEventSource) OpenRideFeed(ctx context.Context, rideID string) (service.EventStream, error) {
	atomic.AddInt32(&m.opens, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenError != nil {
		err := m.OpenError
		m.OpenError = nil
		return nil, err
	}
	if len(m.streams) == 0 {
		return nil, errors.New("mock: no more streams")
	}
	s := m.streams[0]
	m.streams = m.streams[1:]
	return s, nil
}

// OpenCount returns how many times a feed was opened.
func (m *MockEventSource) OpenCount() int32 {
	return atomic.LoadInt32(&m.opens)
}
