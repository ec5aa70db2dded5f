package service

import (
	"testing"

	"github.com/sla15/Dropoff/internal/config"
	"github.com/sla15/Dropoff/internal/domain"
)

func testPricingConfig() config.PricingConfig {
	return config.PricingConfig{
		MinFareRide:       150,
		MinFareDelivery:   200,
		PerKmRate:         40,
		MultiplierEconomy: 1.0,
		MultiplierPremium: 1.5,
		MultiplierScooter: 0.8,
	}
}

func TestPrice(t *testing.T) {
	engine := NewPricingEngine(testPricingConfig())

	cases := []struct {
		name       string
		rideType   domain.RideType
		category   domain.VehicleCategory
		distanceKm float64
		credit     int64
		wantBase   int64
		wantFinal  int64
	}{
		{"economy ride 10km", domain.RideTypeRide, domain.CategoryEconomy, 10, 0, 550, 550},
		{"premium ride 10km", domain.RideTypeRide, domain.CategoryPremium, 10, 0, 750, 750},
		{"scooter ride 10km", domain.RideTypeRide, domain.CategoryScooter, 10, 0, 470, 470},
		{"any prices as economy", domain.RideTypeRide, domain.CategoryAny, 10, 0, 550, 550},
		{"delivery floor", domain.RideTypeDelivery, domain.CategoryEconomy, 10, 0, 600, 600},
		{"fractional distance rounds up", domain.RideTypeRide, domain.CategoryEconomy, 2.51, 0, 251, 251},
		{"zero distance pays the minimum", domain.RideTypeRide, domain.CategoryEconomy, 0, 0, 150, 150},
		{"partial credit", domain.RideTypeRide, domain.CategoryEconomy, 10, 200, 550, 350},
		{"credit covers everything", domain.RideTypeRide, domain.CategoryEconomy, 10, 1000, 550, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote := engine.Price(tc.rideType, tc.category, tc.distanceKm, tc.credit)
			if quote.BasePrice != tc.wantBase {
				t.Errorf("base: expected %d, got %d", tc.wantBase, quote.BasePrice)
			}
			if quote.FinalPrice != tc.wantFinal {
				t.Errorf("final: expected %d, got %d", tc.wantFinal, quote.FinalPrice)
			}
			if quote.FinalPrice < 0 {
				t.Error("final price must never be negative")
			}
		})
	}
}

func TestPrice_CreditNeverExceedsBase(t *testing.T) {
	engine := NewPricingEngine(testPricingConfig())

	quote := engine.Price(domain.RideTypeRide, domain.CategoryEconomy, 1, 100000)
	if quote.Credit != quote.BasePrice {
		t.Errorf("expected applied credit capped at base %d, got %d", quote.BasePrice, quote.Credit)
	}
	if quote.FinalPrice != 0 {
		t.Errorf("expected 0, got %d", quote.FinalPrice)
	}
}

func TestPrice_NegativeCreditIgnored(t *testing.T) {
	engine := NewPricingEngine(testPricingConfig())

	quote := engine.Price(domain.RideTypeRide, domain.CategoryEconomy, 10, -50)
	if quote.Credit != 0 {
		t.Errorf("expected no credit applied, got %d", quote.Credit)
	}
	if quote.FinalPrice != quote.BasePrice {
		t.Errorf("expected full base price, got %d", quote.FinalPrice)
	}
}

func TestPrice_Deterministic(t *testing.T) {
	engine := NewPricingEngine(testPricingConfig())

	a := engine.Price(domain.RideTypeRide, domain.CategoryPremium, 12.34, 100)
	b := engine.Price(domain.RideTypeRide, domain.CategoryPremium, 12.34, 100)
	if a != b {
		t.Errorf("same inputs must produce the same quote: %+v vs %+v", a, b)
	}
}
