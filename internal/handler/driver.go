package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
	rideService   *service.RideService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, rideService *service.RideService) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		rideService:   rideService,
	}
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Heading float64 `json:"heading,omitempty"`
}

// AcceptRideRequest is the HTTP request body for accepting a ride.
type AcceptRideRequest struct {
	RideID string `json:"ride_id"`
}

// AcceptRideResponse is the HTTP response for a successful accept.
type AcceptRideResponse struct {
	Ride   RideResponse   `json:"ride"`
	Driver DriverResponse `json:"driver"`
}

// DriverResponse is the HTTP representation of a driver profile.
type DriverResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Vehicle  string  `json:"vehicle"`
	Plate    string  `json:"plate"`
	Category string  `json:"category"`
	Rating   float64 `json:"rating"`
}

func toDriverResponse(driver *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:       driver.ID,
		Name:     driver.Name,
		Vehicle:  driver.Vehicle,
		Plate:    driver.Plate,
		Category: string(driver.Category),
		Rating:   driver.Rating,
	}
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.driverService.UpdateLocation(c.Request.Context(), domain.DriverPosition{
		DriverID:  c.Param("id"),
		Lat:       req.Lat,
		Lng:       req.Lng,
		Heading:   req.Heading,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetAvailable handles POST /v1/drivers/:id/available
func (h *DriverHandler) SetAvailable(c *gin.Context) {
	if err := h.driverService.SetAvailable(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) SetOffline(c *gin.Context) {
	if err := h.driverService.SetOffline(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetProfile handles GET /v1/drivers/:id
func (h *DriverHandler) GetProfile(c *gin.Context) {
	driver, err := h.driverService.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// AcceptRide handles POST /v1/drivers/:id/accept
func (h *DriverHandler) AcceptRide(c *gin.Context) {
	var req AcceptRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.rideService.Accept(c.Request.Context(), req.RideID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AcceptRideResponse{
		Ride:   toRideResponse(result.Ride),
		Driver: toDriverResponse(result.Driver),
	})
}

// SignalArrived handles POST /v1/rides/:id/arrived
func (h *DriverHandler) SignalArrived(c *gin.Context) {
	ride, err := h.rideService.SignalArrived(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// SignalStarted handles POST /v1/rides/:id/start
func (h *DriverHandler) SignalStarted(c *gin.Context) {
	ride, err := h.rideService.SignalStarted(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// SignalCompleted handles POST /v1/rides/:id/complete
func (h *DriverHandler) SignalCompleted(c *gin.Context) {
	ride, err := h.rideService.SignalCompleted(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}
