package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the coordinator.
type Metrics struct {
	DispatchTicks         prometheus.Counter
	DriversNotified       prometheus.Counter
	RidesMatched          prometheus.Counter
	RidesCancelled        *prometheus.CounterVec
	SearchRadiusKm        prometheus.Histogram
	FeedReconnects        prometheus.Counter
	PositionsConsumed     prometheus.Counter
	PositionConsumeErrors prometheus.Counter
	RouteCacheHits        prometheus.Counter
	RouteCacheMisses      prometheus.Counter
}

// NewMetrics registers and returns the coordinator's metrics under the
// dropoff namespace.
func NewMetrics() *Metrics {
	return &Metrics{
		DispatchTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dropoff",
			Name:      "dispatch_ticks_total",
			Help:      "Number of expanding-radius search ticks executed.",
		}),
		DriversNotified: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dropoff",
			Name:      "drivers_notified_total",
			Help:      "Number of ride offers pushed to drivers.",
		}),
		RidesMatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dropoff",
			Name:      "rides_matched_total",
			Help:      "Number of rides accepted by a driver.",
		}),
		RidesCancelled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dropoff",
			Name:      "rides_cancelled_total",
			Help:      "Number of rides cancelled, by initiator.",
		}, []string{"by"}),
		SearchRadiusKm: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dropoff",
			Name:      "search_radius_km",
			Help:      "Final search radius when dispatch ended.",
			Buckets:   []float64{2, 4, 6, 8, 10, 30, 50, 70, 90, 120},
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dropoff",
			Name:      "feed_reconnects_total",
			Help:      "Number of ride feed reconnect attempts.",
		}),
		PositionsConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dropoff",
			Name:      "driver_positions_consumed_total",
			Help:      "Number of driver position messages ingested from Kafka.",
		}),
		PositionConsumeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dropoff",
			Name:      "driver_position_consume_errors_total",
			Help:      "Number of malformed or failed position messages.",
		}),
		RouteCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dropoff",
			Name:      "route_cache_hits_total",
			Help:      "Number of routing requests served from the distance cache.",
		}),
		RouteCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dropoff",
			Name:      "route_cache_misses_total",
			Help:      "Number of routing requests sent to the directions provider.",
		}),
	}
}
