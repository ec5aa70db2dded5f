package domain

import "time"

// RideStatus represents the current lifecycle state of a ride.
type RideStatus string

const (
	RideStatusSearching             RideStatus = "searching"
	RideStatusAccepted              RideStatus = "accepted"
	RideStatusArrived               RideStatus = "arrived"
	RideStatusInProgress            RideStatus = "in-progress"
	RideStatusCompleted             RideStatus = "completed"
	RideStatusCancelled             RideStatus = "cancelled"
	RideStatusCancelledCounterparty RideStatus = "cancelled_by_counterparty"
)

// IsTerminal reports whether no further transitions are valid from s.
func (s RideStatus) IsTerminal() bool {
	switch s {
	case RideStatusCompleted, RideStatusCancelled, RideStatusCancelledCounterparty:
		return true
	}
	return false
}

// RideType distinguishes passenger trips from deliveries.
type RideType string

const (
	RideTypeRide     RideType = "ride"
	RideTypeDelivery RideType = "delivery"
)

// VehicleCategory is the vehicle class requested for a ride.
type VehicleCategory string

const (
	CategoryEconomy VehicleCategory = "economy"
	CategoryPremium VehicleCategory = "premium"
	CategoryScooter VehicleCategory = "scooter"
	CategoryAny     VehicleCategory = "any"
)

// ValidCategory reports whether c is a recognised vehicle category.
func ValidCategory(c VehicleCategory) bool {
	switch c {
	case CategoryEconomy, CategoryPremium, CategoryScooter, CategoryAny:
		return true
	}
	return false
}

// Waypoint is a resolved location: a human-readable address plus coordinates.
type Waypoint struct {
	Address string
	Lat     float64
	Lng     float64
}

// Ride is the central entity tracked by the coordinator, from creation to a
// terminal state. DistanceKm and PriceQuoted are computed once at request
// time and never re-quoted; a new price means a new ride.
type Ride struct {
	ID              string
	CustomerID      string
	DriverID        string // empty until a driver accepts
	Pickup          Waypoint
	Stops           []Waypoint // ordered; the last stop is the dropoff
	RideType        RideType
	VehicleCategory VehicleCategory
	DistanceKm      float64
	DurationMin     float64
	PriceQuoted     int64
	CreditApplied   int64
	Status          RideStatus
	CreatedAt       time.Time
	CancelledAt     time.Time
	CancelReason    string
}

// Dropoff returns the final stop of the ride.
func (r *Ride) Dropoff() Waypoint {
	if len(r.Stops) == 0 {
		return Waypoint{}
	}
	return r.Stops[len(r.Stops)-1]
}

// Review is the post-trip feedback a customer leaves for a driver. The
// coordinator triggers the review flow on completion; collecting the rating
// itself belongs to the presentation layer.
type Review struct {
	ID         string
	RideID     string
	ReviewerID string
	TargetID   string
	Rating     int
	Comment    string
	CreatedAt  time.Time
}
