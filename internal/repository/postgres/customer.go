package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/repository"
)

// CustomerRepository implements repository.CustomerRepository using PostgreSQL.
type CustomerRepository struct {
	db *sql.DB
}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// GetByID retrieves a customer by ID.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), credit_cents, COALESCE(fcm_token, '') FROM customers WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var customer domain.Customer
	err := row.Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.CreditCents, &customer.FCMToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// DeductCredit subtracts amount from the customer's prepaid balance. The
// balance predicate keeps the write from driving the balance negative when
// two completions race.
func (r *CustomerRepository) DeductCredit(ctx context.Context, id string, amount int64) error {
	query := `UPDATE customers SET credit_cents = credit_cents - $1 WHERE id = $2 AND credit_cents >= $1`

	result, err := r.db.ExecContext(ctx, query, amount, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrConflict
	}
	return nil
}

// SaveReview persists a post-trip review.
func (r *CustomerRepository) SaveReview(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, ride_id, reviewer_id, target_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		review.ID, review.RideID, review.ReviewerID, review.TargetID,
		review.Rating, review.Comment, review.CreatedAt)
	return err
}
