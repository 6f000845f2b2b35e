// Package presence tracks which users are online through periodic heartbeats.
package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultInterval is how often clients are expected to heartbeat.
const DefaultInterval = 30 * time.Second

// Status is a user's presence as seen by others.
type Status struct {
	UserID   uuid.UUID  `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// Store persists presence. Online marks expire after ttl unless renewed.
type Store interface {
	MarkOnline(ctx context.Context, userID uuid.UUID, at time.Time, ttl time.Duration) error
	MarkOffline(ctx context.Context, userID uuid.UUID, at time.Time) error
	Lookup(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]Status, error)
}

// Service implements the heartbeat contract: every renewal extends the online
// mark by three intervals and stamps last-seen.
type Service struct {
	store    Store
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a presence service.
func NewService(st Store, interval time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{store: st, interval: interval, now: time.Now, logger: logger}
}

// Interval is the expected heartbeat period.
func (s *Service) Interval() time.Duration { return s.interval }

// TTL is how long an online mark survives without a heartbeat.
func (s *Service) TTL() time.Duration { return 3 * s.interval }

// SetOnline marks userID online.
func (s *Service) SetOnline(ctx context.Context, userID uuid.UUID) error {
	return s.store.MarkOnline(ctx, userID, s.now().UTC(), s.TTL())
}

// Heartbeat renews userID's online mark.
func (s *Service) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.MarkOnline(ctx, userID, s.now().UTC(), s.TTL()); err != nil {
		s.logger.Debug("heartbeat failed", zap.String("user_id", userID.String()), zap.Error(err))
		return err
	}
	return nil
}

// SetOffline clears userID's online mark immediately.
func (s *Service) SetOffline(ctx context.Context, userID uuid.UUID) error {
	return s.store.MarkOffline(ctx, userID, s.now().UTC())
}

// Statuses returns presence for every id, offline when unknown.
func (s *Service) Statuses(ctx context.Context, userIDs []uuid.UUID) ([]Status, error) {
	found, err := s.store.Lookup(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	out := make([]Status, len(userIDs))
	for i, id := range userIDs {
		st, ok := found[id]
		if !ok {
			st = Status{UserID: id}
		}
		out[i] = st
	}
	return out, nil
}
