package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sla15/Dropoff/internal/domain"
)

const driverPositionsChannel = "feed:driver_positions"

func rideFeedChannel(rideID string) string {
	return fmt.Sprintf("feed:ride:%s", rideID)
}

// FeedStore publishes and subscribes to ride lifecycle events and driver
// positions over Redis pub/sub. Delivery is at-least-once for connected
// subscribers; consumers tolerate duplicates.
type FeedStore struct {
	client *redis.Client
}

// NewFeedStore creates a new FeedStore.
func NewFeedStore(client *redis.Client) *FeedStore {
	return &FeedStore{client: client}
}

// PublishRideChange publishes a lifecycle event to the ride's feed.
func (s *FeedStore) PublishRideChange(ctx context.Context, change domain.RideChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, rideFeedChannel(change.RideID), data).Err()
}

// PublishDriverPosition publishes a position fix to the shared positions
// channel.
func (s *FeedStore) PublishDriverPosition(ctx context.Context, pos domain.DriverPosition) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, driverPositionsChannel, data).Err()
}

// RideEventStream is a live subscription to one ride's feed.
type RideEventStream struct {
	sub *redis.PubSub
}

// OpenRideFeed subscribes to a ride's feed. The returned stream stays open
// until Close is called or the connection drops.
func (s *FeedStore) OpenRideFeed(ctx context.Context, rideID string) (*RideEventStream, error) {
	sub := s.client.Subscribe(ctx, rideFeedChannel(rideID))
	// Force the subscription onto the wire before returning so callers
	// don't miss events published right after.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}
	return &RideEventStream{sub: sub}, nil
}

// Next blocks until the next event arrives, the context is cancelled, or
// the underlying connection fails.
func (st *RideEventStream) Next(ctx context.Context) (domain.RideChange, error) {
	msg, err := st.sub.ReceiveMessage(ctx)
	if err != nil {
		return domain.RideChange{}, err
	}
	var change domain.RideChange
	if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
		return domain.RideChange{}, err
	}
	return change, nil
}

// Close tears down the subscription.
func (st *RideEventStream) Close() error {
	return st.sub.Close()
}

// DriverPositionStream is a live subscription to the broadcast driver
// positions channel.
type DriverPositionStream struct {
	sub *redis.PubSub
}

// OpenDriverPositions subscribes to the shared positions channel. Every
// subscriber sees every fix; filtering happens on the consumer side.
func (s *FeedStore) OpenDriverPositions(ctx context.Context) (*DriverPositionStream, error) {
	sub := s.client.Subscribe(ctx, driverPositionsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}
	return &DriverPositionStream{sub: sub}, nil
}

// Next blocks until the next position fix arrives, the context is
// cancelled, or the underlying connection fails.
func (st *DriverPositionStream) Next(ctx context.Context) (domain.DriverPosition, error) {
	msg, err := st.sub.ReceiveMessage(ctx)
	if err != nil {
		return domain.DriverPosition{}, err
	}
	var pos domain.DriverPosition
	if err := json.Unmarshal([]byte(msg.Payload), &pos); err != nil {
		return domain.DriverPosition{}, err
	}
	return pos, nil
}

// Close tears down the subscription.
func (st *DriverPositionStream) Close() error {
	return st.sub.Close()
}
