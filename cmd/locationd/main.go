package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/sla15/Dropoff/internal/app"
	"github.com/sla15/Dropoff/internal/config"
	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/observability"
	internalRedis "github.com/sla15/Dropoff/internal/redis"
)

// locationd ingests the driver position stream from Kafka into the Redis
// geo index, and republishes each fix to the live positions feed for
// connected clients.
func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	cfg := config.Load()
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	redisClient, err := app.NewRedisClient(connectCtx, cfg.Redis, nil)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	locationStore := internalRedis.NewLocationStore(redisClient)
	feedStore := internalRedis.NewFeedStore(redisClient)

	// Metrics and health server.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	log.Printf("locationd consuming topic=%s brokers=%v group=%s", cfg.Kafka.Topic, cfg.Kafka.Brokers, cfg.Kafka.GroupID)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down locationd")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		var pos domain.DriverPosition
		if err := json.Unmarshal(m.Value, &pos); err != nil {
			metrics.PositionConsumeErrors.Inc()
			log.Printf("invalid position message: %v", err)
			continue
		}
		if pos.DriverID == "" {
			metrics.PositionConsumeErrors.Inc()
			continue
		}

		if err := ingestWithRetry(ctx, locationStore, pos, 3, 200*time.Millisecond); err != nil {
			metrics.PositionConsumeErrors.Inc()
			log.Printf("redis update failed for driver=%s: %v", pos.DriverID, err)
			continue
		}

		// Fan-out is best effort; the geo index is the system of record.
		_ = feedStore.PublishDriverPosition(ctx, pos)

		metrics.PositionsConsumed.Inc()
	}
}

// LocationWriter is the subset of the location store the ingest loop needs.
type LocationWriter interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
}

// ingestWithRetry writes a position fix to the geo index with a small
// exponential backoff between attempts.
func ingestWithRetry(ctx context.Context, store LocationWriter, pos domain.DriverPosition, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = store.UpdateLocation(ctx, pos.DriverID, pos.Lat, pos.Lng)
		if err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
