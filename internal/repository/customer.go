package repository

import (
	"context"

	"github.com/sla15/Dropoff/internal/domain"
)

// CustomerRepository defines the persistence operations for customers.
type CustomerRepository interface {
	// GetByID retrieves a customer by ID.
	GetByID(ctx context.Context, id string) (*domain.Customer, error)

	// DeductCredit subtracts amount from the customer's prepaid balance.
	// Returns ErrConflict if the balance would go negative.
	DeductCredit(ctx context.Context, id string, amount int64) error

	// SaveReview persists a post-trip review.
	SaveReview(ctx context.Context, review *domain.Review) error
}
