package domain

// DriverStatus represents the current availability of a driver.
type DriverStatus string

const (
	DriverStatusAvailable DriverStatus = "available"
	DriverStatusBusy      DriverStatus = "busy"
	DriverStatusOffline   DriverStatus = "offline"
)

// Driver is a driver's stored profile.
type Driver struct {
	ID       string
	Name     string
	Phone    string
	Vehicle  string
	Plate    string
	Category VehicleCategory
	Rating   float64
	Status   DriverStatus
	FCMToken string
}

// Customer is a rider's stored profile. CreditCents is a prepaid balance
// applied against quoted fares.
type Customer struct {
	ID          string
	Name        string
	Phone       string
	CreditCents int64
	FCMToken    string
}

// DriverCandidate is a driver surfaced by a geo search, with the distance
// from the pickup point at search time.
type DriverCandidate struct {
	DriverID   string
	Lat        float64
	Lng        float64
	DistanceKm float64
	Category   VehicleCategory
}
