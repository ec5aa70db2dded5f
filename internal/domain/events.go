package domain

// RideEvent names a lifecycle signal delivered to a ride's feed. The same
// values travel over the pub/sub channel and the websocket stream.
type RideEvent string

const (
	EventAccepted             RideEvent = "accepted"
	EventArrived              RideEvent = "arrived"
	EventStarted              RideEvent = "started"
	EventCompleted            RideEvent = "completed"
	EventCancelledByCustomer  RideEvent = "cancelled_by_customer"
	EventCancelledByDriver    RideEvent = "cancelled_by_driver"
	EventExpansionRequested   RideEvent = "expansion_requested"
	EventNoDriversFound       RideEvent = "no_drivers_found"
)

// RideChange is the payload published to a ride's feed whenever its state
// moves. DriverID is set from accepted onward.
type RideChange struct {
	RideID   string     `json:"ride_id"`
	Event    RideEvent  `json:"event"`
	Status   RideStatus `json:"status"`
	DriverID string     `json:"driver_id,omitempty"`
	RadiusKm float64    `json:"radius_km,omitempty"`
}

// DriverPosition is a single GPS fix reported by a driver's device.
type DriverPosition struct {
	DriverID  string  `json:"driver_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Heading   float64 `json:"heading,omitempty"`
	Timestamp int64   `json:"timestamp"`
}
