package service

import (
	"math"

	"github.com/sla15/Dropoff/internal/config"
	"github.com/sla15/Dropoff/internal/domain"
)

// PricingEngine computes fare quotes. It is pure: the same inputs always
// produce the same quote, and a quote is never recomputed for an existing
// ride.
type PricingEngine struct {
	cfg config.PricingConfig
}

// NewPricingEngine creates a PricingEngine with the given fare parameters.
func NewPricingEngine(cfg config.PricingConfig) *PricingEngine {
	return &PricingEngine{cfg: cfg}
}

// Quote is a computed fare.
type Quote struct {
	BasePrice  int64
	Credit     int64
	FinalPrice int64
}

// multiplier returns the category's fare multiplier. Category "any" prices
// at the economy rate.
func (p *PricingEngine) multiplier(category domain.VehicleCategory) float64 {
	switch category {
	case domain.CategoryPremium:
		return p.cfg.MultiplierPremium
	case domain.CategoryScooter:
		return p.cfg.MultiplierScooter
	default:
		return p.cfg.MultiplierEconomy
	}
}

// minFare returns the floor fare for the ride type.
func (p *PricingEngine) minFare(rideType domain.RideType) int64 {
	if rideType == domain.RideTypeDelivery {
		return p.cfg.MinFareDelivery
	}
	return p.cfg.MinFareRide
}

// Price computes the quote for a trip. The base price is the type's
// minimum fare plus the per-kilometer charge scaled by the category
// multiplier, rounded up to a whole unit. Available credit is applied
// against the base, never below zero.
func (p *PricingEngine) Price(rideType domain.RideType, category domain.VehicleCategory, distanceKm float64, credit int64) Quote {
	base := int64(math.Ceil(float64(p.minFare(rideType)) + distanceKm*float64(p.cfg.PerKmRate)*p.multiplier(category)))

	applied := credit
	if applied > base {
		applied = base
	}
	if applied < 0 {
		applied = 0
	}

	return Quote{
		BasePrice:  base,
		Credit:     applied,
		FinalPrice: base - applied,
	}
}
