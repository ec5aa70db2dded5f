package service

import "errors"

var (
	// ErrNoDriversFound is returned when the search exhausted the hard
	// stop radius without a match.
	ErrNoDriversFound = errors.New("no drivers found")

	// ErrActiveRide is returned when a customer requests a ride while
	// another of theirs is still in flight.
	ErrActiveRide = errors.New("customer already has an active ride")

	// ErrSelfMatch is returned when a driver tries to accept their own
	// ride request.
	ErrSelfMatch = errors.New("driver cannot accept own ride")

	// ErrRideTaken is returned when a driver accepts a ride another
	// driver already took.
	ErrRideTaken = errors.New("ride already taken")

	// ErrDriverUnavailable is returned when a driver who is busy or
	// offline tries to accept a ride.
	ErrDriverUnavailable = errors.New("driver not available")

	// ErrRideNotSearching is returned when an expansion decision arrives
	// for a ride that is no longer searching.
	ErrRideNotSearching = errors.New("ride not searching")

	// ErrRouteUnavailable is returned when the directions provider could
	// not produce a route between the waypoints.
	ErrRouteUnavailable = errors.New("no route between waypoints")

	// ErrGeocodeFailure is returned when an address cannot be resolved
	// to coordinates.
	ErrGeocodeFailure = errors.New("address could not be geocoded")

	// ErrInvalidCustomerID is returned when customer ID is empty.
	ErrInvalidCustomerID = errors.New("invalid customer id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidStops is returned when a request carries no stops.
	ErrInvalidStops = errors.New("at least one stop is required")

	// ErrInvalidCategory is returned when the vehicle category is not
	// recognised.
	ErrInvalidCategory = errors.New("invalid vehicle category")

	// ErrInvalidRideType is returned when the ride type is not ride or
	// delivery.
	ErrInvalidRideType = errors.New("invalid ride type")

	// ErrInvalidRating is returned when a review rating is outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrRideCannotBeCancelled is returned when the ride is already in a
	// terminal state.
	ErrRideCannotBeCancelled = errors.New("ride cannot be cancelled in current state")

	// ErrFeedClosed is returned by subscription operations after Close.
	ErrFeedClosed = errors.New("ride feed closed")
)
