package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sla15/Dropoff/internal/handler"
	"github.com/sla15/Dropoff/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler   *handler.RideHandler
	DriverHandler *handler.DriverHandler
	EventsHandler *handler.EventsHandler
	RedisClient   *redis.Client
	NewRelicApp   *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint.
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Ride routes.
		rides := v1.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.GET("/:id/events", deps.EventsHandler.StreamRideEvents)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.POST("/:id/expand", deps.RideHandler.ConfirmExpansion)
			rides.POST("/:id/decline-expand", deps.RideHandler.DeclineExpansion)
			rides.POST("/:id/review", deps.RideHandler.SubmitReview)
			rides.POST("/:id/arrived", deps.DriverHandler.SignalArrived)
			rides.POST("/:id/start", deps.DriverHandler.SignalStarted)
			rides.POST("/:id/complete", deps.DriverHandler.SignalCompleted)
		}

		// Broadcast driver position stream.
		v1.GET("/positions", deps.EventsHandler.StreamDriverPositions)

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.GET("/:id", deps.DriverHandler.GetProfile)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.POST("/:id/available", deps.DriverHandler.SetAvailable)
			drivers.POST("/:id/offline", deps.DriverHandler.SetOffline)
			drivers.POST("/:id/accept", deps.DriverHandler.AcceptRide)
		}
	}

	return router
}
