package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/sla15/Dropoff/internal/config"
	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/repository"
)

// Notifier delivers push notifications to riders and drivers. Delivery is
// best effort: a dropped push never blocks a lifecycle transition.
type Notifier interface {
	// NotifyRideOffer offers a ride to a driver. Callers guarantee each
	// driver sees a given ride's offer at most once.
	NotifyRideOffer(ctx context.Context, ride *domain.Ride, driverID string) error

	// NotifyDriverAssigned tells the customer who accepted their ride.
	NotifyDriverAssigned(ctx context.Context, ride *domain.Ride, driver *domain.Driver) error

	// NotifyRideCancelled tells the counterparty the ride was cancelled.
	NotifyRideCancelled(ctx context.Context, ride *domain.Ride) error

	// NotifyRideCompleted tells the customer the trip ended and prompts
	// for a review.
	NotifyRideCompleted(ctx context.Context, ride *domain.Ride) error

	// NotifyExpansionPrompt asks the customer whether to widen the
	// search past the operator maximum.
	NotifyExpansionPrompt(ctx context.Context, ride *domain.Ride, nextRadiusKm float64) error

	// NotifyNoDriversFound tells the customer the search gave up.
	NotifyNoDriversFound(ctx context.Context, ride *domain.Ride) error
}

// fcmMessage is the legacy FCM HTTP payload.
type fcmMessage struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// FCMNotifier implements Notifier over the FCM HTTP API. Device tokens are
// read from the driver and customer profiles.
type FCMNotifier struct {
	cfg          config.PushConfig
	httpClient   *http.Client
	driverRepo   repository.DriverRepository
	customerRepo repository.CustomerRepository
}

// NewFCMNotifier creates an FCMNotifier.
func NewFCMNotifier(cfg config.PushConfig, driverRepo repository.DriverRepository, customerRepo repository.CustomerRepository) *FCMNotifier {
	return &FCMNotifier{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		driverRepo:   driverRepo,
		customerRepo: customerRepo,
	}
}

// NotifyRideOffer offers a ride to a driver.
func (n *FCMNotifier) NotifyRideOffer(ctx context.Context, ride *domain.Ride, driverID string) error {
	driver, err := n.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	title := "New ride request"
	if ride.RideType == domain.RideTypeDelivery {
		title = "New delivery request"
	}
	return n.send(ctx, driver.FCMToken, title,
		fmt.Sprintf("Pickup at %s", ride.Pickup.Address),
		map[string]string{
			"ride_id":    ride.ID,
			"pickup_lat": fmt.Sprintf("%f", ride.Pickup.Lat),
			"pickup_lng": fmt.Sprintf("%f", ride.Pickup.Lng),
			"price":      fmt.Sprintf("%d", ride.PriceQuoted),
		})
}

// NotifyDriverAssigned tells the customer who accepted their ride.
func (n *FCMNotifier) NotifyDriverAssigned(ctx context.Context, ride *domain.Ride, driver *domain.Driver) error {
	customer, err := n.customerRepo.GetByID(ctx, ride.CustomerID)
	if err != nil {
		return err
	}
	return n.send(ctx, customer.FCMToken, "Driver on the way",
		fmt.Sprintf("%s is coming in a %s (%s)", driver.Name, driver.Vehicle, driver.Plate),
		map[string]string{
			"ride_id":   ride.ID,
			"driver_id": driver.ID,
		})
}

// NotifyRideCancelled tells the counterparty the ride was cancelled.
func (n *FCMNotifier) NotifyRideCancelled(ctx context.Context, ride *domain.Ride) error {
	if ride.Status == domain.RideStatusCancelledCounterparty {
		// The driver cancelled; the customer hears about it.
		customer, err := n.customerRepo.GetByID(ctx, ride.CustomerID)
		if err != nil {
			return err
		}
		return n.send(ctx, customer.FCMToken, "Ride cancelled",
			"Your driver cancelled the ride.",
			map[string]string{"ride_id": ride.ID})
	}
	if ride.DriverID == "" {
		return nil
	}
	driver, err := n.driverRepo.GetByID(ctx, ride.DriverID)
	if err != nil {
		return err
	}
	return n.send(ctx, driver.FCMToken, "Ride cancelled",
		"The customer cancelled the ride.",
		map[string]string{"ride_id": ride.ID})
}

// NotifyRideCompleted tells the customer the trip ended and prompts for a
// review.
func (n *FCMNotifier) NotifyRideCompleted(ctx context.Context, ride *domain.Ride) error {
	customer, err := n.customerRepo.GetByID(ctx, ride.CustomerID)
	if err != nil {
		return err
	}
	return n.send(ctx, customer.FCMToken, "Trip completed",
		"How was your trip? Leave your driver a review.",
		map[string]string{
			"ride_id":   ride.ID,
			"driver_id": ride.DriverID,
			"action":    "review",
		})
}

// NotifyExpansionPrompt asks the customer whether to widen the search.
func (n *FCMNotifier) NotifyExpansionPrompt(ctx context.Context, ride *domain.Ride, nextRadiusKm float64) error {
	customer, err := n.customerRepo.GetByID(ctx, ride.CustomerID)
	if err != nil {
		return err
	}
	return n.send(ctx, customer.FCMToken, "Still searching",
		fmt.Sprintf("No drivers nearby. Search up to %.0f km away?", nextRadiusKm),
		map[string]string{
			"ride_id": ride.ID,
			"action":  "expand_search",
		})
}

// NotifyNoDriversFound tells the customer the search gave up.
func (n *FCMNotifier) NotifyNoDriversFound(ctx context.Context, ride *domain.Ride) error {
	customer, err := n.customerRepo.GetByID(ctx, ride.CustomerID)
	if err != nil {
		return err
	}
	return n.send(ctx, customer.FCMToken, "No drivers found",
		"We couldn't find a driver for your request. Please try again later.",
		map[string]string{"ride_id": ride.ID})
}

func (n *FCMNotifier) send(ctx context.Context, token, title, body string, data map[string]string) error {
	if token == "" {
		return nil
	}

	payload, err := json.Marshal(fcmMessage{
		To:           token,
		Notification: fcmNotification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+n.cfg.ServerKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("fcm push failed: status=%d title=%q", resp.StatusCode, title)
		return fmt.Errorf("fcm push: unexpected status %d", resp.StatusCode)
	}
	return nil
}
