package tests

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/handler"
	"github.com/sla15/Dropoff/internal/service"
)

// dialWS connects a websocket client to path on the test server.
func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func TestStreamDriverPositions_DeliversFixes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	stream := NewMockPositionStream()
	source := NewMockEventSource()
	source.AddPositionStream(stream)
	manager := service.NewSubscriptionManager(source, nil)

	h := handler.NewEventsHandler(nil, manager)
	router := gin.New()
	router.GET("/positions", h.StreamDriverPositions)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn := dialWS(t, srv, "/positions?driver_id=driver-1")
	defer conn.Close()

	stream.Emit(domain.DriverPosition{DriverID: "driver-2", Lat: 12.98, Lng: 77.60})
	stream.Emit(domain.DriverPosition{DriverID: "driver-1", Lat: 12.97, Lng: 77.59})

	var pos domain.DriverPosition
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&pos); err != nil {
		t.Fatalf("read: %v", err)
	}
	if pos.DriverID != "driver-1" {
		t.Errorf("expected only driver-1 through the filter, got %s", pos.DriverID)
	}
}

func TestStreamDriverPositions_ClientDisconnectDuringDelivery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	stream := NewMockPositionStream()
	source := NewMockEventSource()
	source.AddPositionStream(stream)
	manager := service.NewSubscriptionManager(source, nil)

	h := handler.NewEventsHandler(nil, manager)
	// No recovery middleware: a panic in the handler or its goroutines
	// takes the test binary down.
	router := gin.New()
	router.GET("/positions", h.StreamDriverPositions)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn := dialWS(t, srv, "/positions")

	stream.Emit(domain.DriverPosition{DriverID: "driver-1", Lat: 12.97, Lng: 77.59})
	var pos domain.DriverPosition
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&pos); err != nil {
		t.Fatalf("read: %v", err)
	}

	// Drop the client while fixes keep arriving. The handler's read side
	// and its write side both see the dead socket at nearly the same
	// moment; the shutdown must survive both reporting it.
	conn.Close()
	for i := 0; i < 5; i++ {
		stream.Emit(domain.DriverPosition{DriverID: "driver-1", Lat: 12.97, Lng: 77.59})
	}

	time.Sleep(50 * time.Millisecond)
}

func TestStreamRideEvents_ClientDisconnectDuringDelivery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	f := newRideFixture()
	f.rideRepo.AddRide(&domain.Ride{
		ID:         "ride-1",
		CustomerID: "customer-1",
		Status:     domain.RideStatusSearching,
	})

	stream := NewMockEventStream()
	source := NewMockEventSource(stream)
	manager := service.NewSubscriptionManager(source, nil)

	h := handler.NewEventsHandler(f.svc, manager)
	router := gin.New()
	router.GET("/rides/:id/events", h.StreamRideEvents)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn := dialWS(t, srv, "/rides/ride-1/events")

	// The snapshot arrives before any live event.
	var snapshot domain.RideChange
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Status != domain.RideStatusSearching {
		t.Errorf("expected searching snapshot, got %s", snapshot.Status)
	}

	conn.Close()
	for i := 0; i < 5; i++ {
		stream.Emit(domain.RideChange{RideID: "ride-1", Event: domain.EventAccepted})
	}

	time.Sleep(50 * time.Millisecond)
}
