package service

import (
	"context"
	"log"
	"time"

	"github.com/sla15/Dropoff/internal/domain"
	"github.com/sla15/Dropoff/internal/redis"
	"github.com/sla15/Dropoff/internal/repository"
)

// Sweeper cancels rides left in the searching state with no live search
// behind them, typically after a crash or restart. Their in-memory search
// state is gone, so nothing would ever move them again.
type Sweeper struct {
	rideRepo   repository.RideRepository
	feed       FeedPublisher
	cacheStore *redis.CacheStore
	maxAge     time.Duration
	live       func(rideID string) bool
}

// NewSweeper creates a Sweeper that treats searching rides older than
// maxAge as candidates. live reports whether a search is still running for
// a ride; nil means no search is live anywhere.
func NewSweeper(rideRepo repository.RideRepository, feed FeedPublisher, cacheStore *redis.CacheStore, maxAge time.Duration, live func(rideID string) bool) *Sweeper {
	return &Sweeper{rideRepo: rideRepo, feed: feed, cacheStore: cacheStore, maxAge: maxAge, live: live}
}

// Sweep cancels every orphaned searching ride and reports how many it
// cleaned up. Run once at startup before the server takes traffic.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.maxAge)

	stale, err := s.rideRepo.ListStaleSearching(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, ride := range stale {
		if s.live != nil && s.live(ride.ID) {
			continue
		}
		err := s.rideRepo.Cancel(ctx, ride.ID, domain.RideStatusCancelled, "search interrupted by restart")
		if err != nil {
			// A driver may have accepted between listing and cancel.
			log.Printf("sweep: ride %s: %v", ride.ID, err)
			continue
		}
		if s.cacheStore != nil {
			_ = s.cacheStore.InvalidateRide(ctx, ride.ID)
		}
		if s.feed != nil {
			_ = s.feed.PublishRideChange(ctx, domain.RideChange{
				RideID: ride.ID,
				Event:  domain.EventNoDriversFound,
				Status: domain.RideStatusCancelled,
			})
		}
		swept++
	}
	return swept, nil
}

// Run sweeps on an interval until the context ends, catching rides that
// slipped through the startup pass.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if swept, err := s.Sweep(ctx); err != nil {
				log.Printf("sweep: %v", err)
			} else if swept > 0 {
				log.Printf("sweep cancelled %d orphaned searches", swept)
			}
		}
	}
}
