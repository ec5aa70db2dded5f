package repository

import (
	"context"

	"github.com/sla15/Dropoff/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// UpdateStatus updates the availability of a driver.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error
}
