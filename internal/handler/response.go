package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sla15/Dropoff/internal/repository"
	"github.com/sla15/Dropoff/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidStops),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrInvalidRideType),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrGeocodeFailure):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrActiveRide),
		errors.Is(err, service.ErrRideTaken),
		errors.Is(err, service.ErrDriverUnavailable),
		errors.Is(err, service.ErrSelfMatch),
		errors.Is(err, service.ErrRideNotSearching),
		errors.Is(err, service.ErrRideCannotBeCancelled),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	// Unprocessable routing requests
	case errors.Is(err, service.ErrRouteUnavailable):
		return http.StatusUnprocessableEntity

	// Service unavailable
	case errors.Is(err, service.ErrNoDriversFound):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
