package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "trip:"
	signOutChannel = "users:signout"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance broadcast.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub implements Publisher, Subscriber and SignOutBus with Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for trip events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// ChannelName is the Redis channel carrying a trip's events.
func ChannelName(tripID uuid.UUID) string {
	return channelPrefix + tripID.String()
}

// PublishTripEvent publishes an event to the trip's Redis channel.
func (r *RedisPubSub) PublishTripEvent(ctx context.Context, tripID uuid.UUID, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, ChannelName(tripID), body).Err()
}

// SubscribeTrip subscribes to a trip's Redis channel and calls handler for each
// message until cancel is called.
func (r *RedisPubSub) SubscribeTrip(tripID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error) {
	return r.listen(ChannelName(tripID), func(msg *redis.Message) {
		var p redisPayload
		if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
			r.logger.Warn("invalid trip event payload", zap.String("channel", msg.Channel), zap.Error(err))
			return
		}
		handler(p.Event, p.Data)
	})
}

// PublishSignOut tells every instance that userID signed out.
func (r *RedisPubSub) PublishSignOut(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, signOutChannel, userID.String()).Err()
}

// SubscribeSignOuts calls handler for every sign-out published by any instance.
func (r *RedisPubSub) SubscribeSignOuts(handler func(userID uuid.UUID)) (cancel func(), err error) {
	return r.listen(signOutChannel, func(msg *redis.Message) {
		userID, err := uuid.Parse(msg.Payload)
		if err != nil {
			r.logger.Warn("invalid sign-out payload", zap.String("payload", msg.Payload), zap.Error(err))
			return
		}
		handler(userID)
	})
}

// listen subscribes to channel and runs handle for each message until cancel.
func (r *RedisPubSub) listen(channel string, handle func(*redis.Message)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handle(msg)
			}
		}
	}()
	return cancelCtx, nil
}
