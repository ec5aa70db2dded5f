package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// WaypointPayload is a stop in a ride request or response. Coordinates may
// be omitted when an address is given; the server geocodes it.
type WaypointPayload struct {
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	CustomerID      string            `json:"customer_id"`
	Pickup          WaypointPayload   `json:"pickup"`
	Stops           []WaypointPayload `json:"stops"`
	RideType        string            `json:"ride_type,omitempty"`        // ride, delivery
	VehicleCategory string            `json:"vehicle_category,omitempty"` // economy, premium, scooter, any
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	ByDriver bool `json:"by_driver"`
}

// ReviewRequest is the HTTP request body for a post-trip review.
type ReviewRequest struct {
	CustomerID string `json:"customer_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID              string            `json:"id"`
	CustomerID      string            `json:"customer_id"`
	DriverID        string            `json:"driver_id,omitempty"`
	Pickup          WaypointPayload   `json:"pickup"`
	Stops           []WaypointPayload `json:"stops"`
	RideType        string            `json:"ride_type"`
	VehicleCategory string            `json:"vehicle_category"`
	DistanceKm      float64           `json:"distance_km"`
	DurationMin     float64           `json:"duration_min"`
	Price           int64             `json:"price"`
	CreditApplied   int64             `json:"credit_applied"`
	Status          string            `json:"status"`
	CancelledAt     string            `json:"cancelled_at,omitempty"`
	CancelReason    string            `json:"cancel_reason,omitempty"`
}

func toRideResponse(ride *domain.Ride) RideResponse {
	stops := make([]WaypointPayload, len(ride.Stops))
	for i, s := range ride.Stops {
		stops[i] = WaypointPayload{Address: s.Address, Lat: s.Lat, Lng: s.Lng}
	}

	resp := RideResponse{
		ID:              ride.ID,
		CustomerID:      ride.CustomerID,
		DriverID:        ride.DriverID,
		Pickup:          WaypointPayload{Address: ride.Pickup.Address, Lat: ride.Pickup.Lat, Lng: ride.Pickup.Lng},
		Stops:           stops,
		RideType:        string(ride.RideType),
		VehicleCategory: string(ride.VehicleCategory),
		DistanceKm:      ride.DistanceKm,
		DurationMin:     ride.DurationMin,
		Price:           ride.PriceQuoted,
		CreditApplied:   ride.CreditApplied,
		Status:          string(ride.Status),
	}
	if !ride.CancelledAt.IsZero() {
		resp.CancelledAt = ride.CancelledAt.Format("2006-01-02T15:04:05Z07:00")
		resp.CancelReason = ride.CancelReason
	}
	return resp
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	stops := make([]domain.Waypoint, len(req.Stops))
	for i, s := range req.Stops {
		stops[i] = domain.Waypoint{Address: s.Address, Lat: s.Lat, Lng: s.Lng}
	}

	result, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		CustomerID:      req.CustomerID,
		Pickup:          domain.Waypoint{Address: req.Pickup.Address, Lat: req.Pickup.Lat, Lng: req.Pickup.Lng},
		Stops:           stops,
		RideType:        domain.RideType(req.RideType),
		VehicleCategory: domain.VehicleCategory(req.VehicleCategory),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(result.Ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("id"), req.ByDriver)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ConfirmExpansion handles POST /v1/rides/:id/expand
func (h *RideHandler) ConfirmExpansion(c *gin.Context) {
	if err := h.rideService.ConfirmExpansion(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, gin.H{"status": "expanding"})
}

// DeclineExpansion handles POST /v1/rides/:id/decline-expand
func (h *RideHandler) DeclineExpansion(c *gin.Context) {
	if err := h.rideService.DeclineExpansion(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, gin.H{"status": "declined"})
}

// SubmitReview handles POST /v1/rides/:id/review
func (h *RideHandler) SubmitReview(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.rideService.SubmitReview(c.Request.Context(), c.Param("id"), req.CustomerID, req.Rating, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"status": "saved"})
}
