package handler

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth happens upstream; the socket itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// EventsHandler streams a ride's lifecycle events over a websocket. Each
// connection gets its own feed subscription; closing the socket closes the
// subscription with it.
type EventsHandler struct {
	rideService   *service.RideService
	subscriptions *service.SubscriptionManager
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(rideService *service.RideService, subscriptions *service.SubscriptionManager) *EventsHandler {
	return &EventsHandler{rideService: rideService, subscriptions: subscriptions}
}

// StreamRideEvents handles GET /v1/rides/:id/events
func (h *EventsHandler) StreamRideEvents(c *gin.Context) {
	rideID := c.Param("id")

	ride, err := h.rideService.GetRide(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	defer conn.Close()

	// The client sees where the ride stands right away, then live events.
	initial := domain.RideChange{
		RideID:   ride.ID,
		Status:   ride.Status,
		DriverID: ride.DriverID,
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(initial); err != nil {
		return
	}

	// Read and write errors can land at the same instant when the client
	// vanishes; only one of them may close the channel.
	done := make(chan struct{})
	var finish sync.Once
	closeDone := func() { finish.Do(func() { close(done) }) }

	sub := h.subscriptions.Subscribe(c.Request.Context(), rideID, func(change domain.RideChange) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(change); err != nil {
			log.Printf("ride %s event stream write: %v", rideID, err)
			closeDone()
		}
	})
	defer sub.Close()

	// Drain reads so pings and close frames are processed; a read error
	// means the client went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeDone()
				return
			}
		}
	}()

	select {
	case <-done:
	case <-c.Request.Context().Done():
	}
}

// StreamDriverPositions handles GET /v1/positions. An optional driver_id
// query narrows the stream to one driver; without it the client sees every
// fix on the broadcast channel.
func (h *EventsHandler) StreamDriverPositions(c *gin.Context) {
	driverID := c.Query("driver_id")

	var filter func(domain.DriverPosition) bool
	if driverID != "" {
		filter = func(pos domain.DriverPosition) bool { return pos.DriverID == driverID }
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	var finish sync.Once
	closeDone := func() { finish.Do(func() { close(done) }) }

	sub := h.subscriptions.SubscribeDriverPositions(c.Request.Context(), filter, func(pos domain.DriverPosition) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(pos); err != nil {
			closeDone()
		}
	})
	defer sub.Close()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeDone()
				return
			}
		}
	}()

	select {
	case <-done:
	case <-c.Request.Context().Done():
	}
}
