package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	onlineKeyPrefix = "presence:online:"
	lastSeenKey     = "presence:last_seen"
)

// RedisStore keeps online marks as expiring keys and last-seen stamps in a hash.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed presence store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func onlineKey(id uuid.UUID) string { return onlineKeyPrefix + id.String() }

func (r *RedisStore) MarkOnline(ctx context.Context, userID uuid.UUID, at time.Time, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, onlineKey(userID), "1", ttl)
	pipe.HSet(ctx, lastSeenKey, userID.String(), at.UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	return nil
}

func (r *RedisStore) MarkOffline(ctx context.Context, userID uuid.UUID, at time.Time) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, onlineKey(userID))
	pipe.HSet(ctx, lastSeenKey, userID.String(), at.UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	return nil
}

func (r *RedisStore) Lookup(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]Status, error) {
	out := make(map[uuid.UUID]Status, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	fields := make([]string, len(userIDs))
	pipe := r.client.Pipeline()
	exists := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		fields[i] = id.String()
		exists[i] = pipe.Exists(ctx, onlineKey(id))
	}
	seen := pipe.HMGet(ctx, lastSeenKey, fields...)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("lookup presence: %w", err)
	}

	stamps := seen.Val()
	for i, id := range userIDs {
		st := Status{UserID: id, Online: exists[i].Val() > 0}
		if i < len(stamps) {
			if raw, ok := stamps[i].(string); ok {
				if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
					t := time.UnixMilli(ms).UTC()
					st.LastSeen = &t
				}
			}
		}
		out[id] = st
	}
	return out, nil
}
