package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideColumns = `id, customer_id, driver_id, pickup_address, pickup_lat, pickup_lng, stops, ride_type, vehicle_category, distance_km, duration_min, price_quoted, credit_applied, status, cancelled_at, cancel_reason, created_at`

// Create persists a new ride. The partial unique index on customer_id
// rejects a second non-terminal ride for the same customer; that violation
// is surfaced as ErrConflict.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	stops, err := json.Marshal(ride.Stops)
	if err != nil {
		return err
	}

	var driverID sql.NullString
	if ride.DriverID != "" {
		driverID = sql.NullString{String: ride.DriverID, Valid: true}
	}

	var cancelledAt sql.NullTime
	if !ride.CancelledAt.IsZero() {
		cancelledAt = sql.NullTime{Time: ride.CancelledAt, Valid: true}
	}

	var cancelReason sql.NullString
	if ride.CancelReason != "" {
		cancelReason = sql.NullString{String: ride.CancelReason, Valid: true}
	}

	_, err = r.q.ExecContext(ctx, query,
		ride.ID,
		ride.CustomerID,
		driverID,
		ride.Pickup.Address,
		ride.Pickup.Lat,
		ride.Pickup.Lng,
		stops,
		ride.RideType,
		ride.VehicleCategory,
		ride.DistanceKm,
		ride.DurationMin,
		ride.PriceQuoted,
		ride.CreditApplied,
		ride.Status,
		cancelledAt,
		cancelReason,
		ride.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

func scanRide(row interface {
	Scan(dest ...any) error
}) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID sql.NullString
	var stops []byte
	var cancelledAt sql.NullTime
	var cancelReason sql.NullString

	err := row.Scan(
		&ride.ID,
		&ride.CustomerID,
		&driverID,
		&ride.Pickup.Address,
		&ride.Pickup.Lat,
		&ride.Pickup.Lng,
		&stops,
		&ride.RideType,
		&ride.VehicleCategory,
		&ride.DistanceKm,
		&ride.DurationMin,
		&ride.PriceQuoted,
		&ride.CreditApplied,
		&ride.Status,
		&cancelledAt,
		&cancelReason,
		&ride.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stops, &ride.Stops); err != nil {
		return nil, err
	}
	if driverID.Valid {
		ride.DriverID = driverID.String
	}
	if cancelledAt.Valid {
		ride.CancelledAt = cancelledAt.Time
	}
	if cancelReason.Valid {
		ride.CancelReason = cancelReason.String
	}

	return &ride, nil
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// GetActiveByCustomer retrieves the customer's non-terminal ride.
func (r *RideRepository) GetActiveByCustomer(ctx context.Context, customerID string) (*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + ` FROM rides
		WHERE customer_id = $1
		AND status NOT IN ('completed', 'cancelled', 'cancelled_by_counterparty')
	`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// UpdateStatus moves a ride between statuses with a conditional write.
func (r *RideRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus) error {
	query := `UPDATE rides SET status = $1 WHERE id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query, to, id, from)
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

// Assign sets the driver and moves the ride from searching to accepted.
// The status predicate makes the first accept win; later attempts match
// zero rows.
func (r *RideRepository) Assign(ctx context.Context, id, driverID string) error {
	query := `
		UPDATE rides SET driver_id = $1, status = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query, driverID, domain.RideStatusAccepted, id, domain.RideStatusSearching)
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

// Cancel moves a non-terminal ride to a terminal cancelled status.
func (r *RideRepository) Cancel(ctx context.Context, id string, to domain.RideStatus, reason string) error {
	query := `
		UPDATE rides SET status = $1, cancelled_at = $2, cancel_reason = $3
		WHERE id = $4
		AND status NOT IN ('completed', 'cancelled', 'cancelled_by_counterparty')
	`

	result, err := r.q.ExecContext(ctx, query, to, time.Now(), reason, id)
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

// ListStaleSearching returns rides stuck in searching since before cutoff.
func (r *RideRepository) ListStaleSearching(ctx context.Context, cutoff time.Time) ([]*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + ` FROM rides
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
	`

	rows, err := r.q.QueryContext(ctx, query, domain.RideStatusSearching, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}
