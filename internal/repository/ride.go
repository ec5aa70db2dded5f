package repository

import (
	"context"
	"time"

	"github.com/sla15/Dropoff/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride. Returns ErrConflict if the customer
	// already has a ride in a non-terminal state.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetActiveByCustomer retrieves the customer's non-terminal ride.
	// Returns ErrNotFound if the customer has no active ride.
	GetActiveByCustomer(ctx context.Context, customerID string) (*domain.Ride, error)

	// UpdateStatus moves a ride from one status to another in a single
	// conditional write. Returns ErrConflict if the ride was no longer in
	// the expected status.
	UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus) error

	// Assign sets the driver and moves the ride from searching to
	// accepted atomically. Returns ErrConflict if the ride was already
	// taken or left the searching state.
	Assign(ctx context.Context, id, driverID string) error

	// Cancel moves a non-terminal ride to the given terminal status with
	// a reason. Returns ErrConflict if the ride is already terminal.
	Cancel(ctx context.Context, id string, to domain.RideStatus, reason string) error

	// ListStaleSearching returns rides stuck in searching since before
	// the cutoff, for the startup sweep.
	ListStaleSearching(ctx context.Context, cutoff time.Time) ([]*domain.Ride, error)
}
