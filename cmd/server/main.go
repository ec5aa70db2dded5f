package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"github.com/sla15/Dropoff/internal/app"
	"github.com/sla15/Dropoff/internal/config"
	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/handler"
	"github.com/sla15/Dropoff/internal/observability"
	internalRedis "github.com/sla15/Dropoff/internal/redis"
	"github.com/sla15/Dropoff/internal/repository"
	"github.com/sla15/Dropoff/internal/repository/postgres"
	"github.com/sla15/Dropoff/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// feedSource adapts the Redis feed store to the subscription manager's
// EventSource.
type feedSource struct {
	store *internalRedis.FeedStore
}

func (f feedSource) OpenRideFeed(ctx context.Context, rideID string) (service.EventStream, error) {
	return f.store.OpenRideFeed(ctx, rideID)
}

func (f feedSource) OpenDriverPositions(ctx context.Context) (service.PositionStream, error) {
	return f.store.OpenDriverPositions(ctx)
}

// cachedStatusReader serves the dispatch loop's per-tick status checks
// from the short-lived ride cache, falling back to the repository. Every
// lifecycle write invalidates the cache entry, so a stale answer lives at
// most one tick.
type cachedStatusReader struct {
	repo  repository.RideRepository
	cache *internalRedis.CacheStore
}

func (r cachedStatusReader) GetStatus(ctx context.Context, rideID string) (domain.RideStatus, error) {
	if cached, err := r.cache.GetRide(ctx, rideID); err == nil && cached != nil {
		return domain.RideStatus(cached.Status), nil
	}

	ride, err := r.repo.GetByID(ctx, rideID)
	if err != nil {
		return "", err
	}

	_ = r.cache.SetRide(ctx, &internalRedis.CachedRide{
		ID:         ride.ID,
		CustomerID: ride.CustomerID,
		Status:     string(ride.Status),
		DriverID:   ride.DriverID,
	})
	return ride.Status, nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) *http.Server {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)
	feedStore := internalRedis.NewFeedStore(redisClient)

	// Initialize repositories.
	customerRepo := postgres.NewCustomerRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	distanceRepo := postgres.NewDistanceCacheRepository(db)

	metrics := observability.NewMetrics()

	// Initialize services.
	directions, err := service.NewGoogleDirections(cfg.Maps)
	if err != nil {
		log.Fatalf("failed to initialize directions provider: %v", err)
	}
	router := service.NewRouteResolver(directions, distanceRepo, metrics)
	pricing := service.NewPricingEngine(cfg.Pricing)
	notifier := service.NewFCMNotifier(cfg.Push, driverRepo, customerRepo)
	matcher := service.NewGeoMatcher(db, locationStore, lockStore, cacheStore, driverRepo, rideRepo)
	lifecycle := service.NewRideLifecycle(rideRepo, driverRepo, customerRepo, locationStore, cacheStore, feedStore, notifier, metrics)
	driverService := service.NewDriverService(locationStore, cacheStore, driverRepo, feedStore)
	subscriptions := service.NewSubscriptionManager(feedSource{store: feedStore}, metrics)

	dispatch := service.NewDispatchLoop(cfg.Dispatch, matcher, cachedStatusReader{repo: rideRepo, cache: cacheStore}, notifier, feedStore, metrics)
	rideService := service.NewRideService(rideRepo, customerRepo, matcher, router, pricing, dispatch, lifecycle, notifier, feedStore, metrics)

	// Cancel searches orphaned by the previous process before taking
	// traffic, then keep sweeping in the background. The live check keeps
	// the periodic pass away from rides this process is still searching.
	sweeper := service.NewSweeper(rideRepo, feedStore, cacheStore, time.Minute, dispatch.Searching)
	sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer sweepCancel()
	if swept, err := sweeper.Sweep(sweepCtx); err != nil {
		log.Printf("startup sweep failed: %v", err)
	} else if swept > 0 {
		log.Printf("startup sweep cancelled %d orphaned searches", swept)
	}
	go sweeper.Run(context.Background(), time.Minute)

	// Initialize handlers.
	rideHandler := handler.NewRideHandler(rideService)
	driverHandler := handler.NewDriverHandler(driverService, rideService)
	eventsHandler := handler.NewEventsHandler(rideService, subscriptions)

	// Create router.
	engine := app.NewRouter(app.RouterDeps{
		RideHandler:   rideHandler,
		DriverHandler: driverHandler,
		EventsHandler: eventsHandler,
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
