// Package realtime fans trip-scoped events out to live subscribers, locally and
// across instances through Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// subscriptionBuffer is how many undelivered events a subscriber may hold
// before it is dropped as a slow consumer.
const subscriptionBuffer = 256

// Event is the envelope delivered to subscribers and written to WebSocket clients.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Publisher publishes trip events to other instances.
type Publisher interface {
	PublishTripEvent(ctx context.Context, tripID uuid.UUID, event string, payload []byte) error
}

// Subscriber receives trip events published by any instance, including this one.
type Subscriber interface {
	SubscribeTrip(tripID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// SignOutBus carries sign-out notices to every instance.
type SignOutBus interface {
	PublishSignOut(ctx context.Context, userID uuid.UUID) error
	SubscribeSignOuts(handler func(userID uuid.UUID)) (cancel func(), err error)
}

// Hub maintains trip_id -> set of subscriptions.
// With Redis configured, Publish goes through Redis only and the per-trip Redis
// subscription performs the local broadcast, so every instance delivers once.
type Hub struct {
	rooms  map[uuid.UUID]map[string]*Subscription
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber

	signOuts SignOutBus
}

// NewHub creates a hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[string]*Subscription),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Subscribe registers a subscription to tripID. The first local subscriber of a
// trip opens the Redis subscription for it; the round trip runs without h.mu held.
func (h *Hub) Subscribe(tripID, userID uuid.UUID) (*Subscription, error) {
	s := &Subscription{
		ID:     uuid.New().String(),
		TripID: tripID,
		UserID: userID,
		hub:    h,
		events: make(chan Event, subscriptionBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	room, ok := h.rooms[tripID]
	if ok {
		room[s.ID] = s
	}
	h.mu.Unlock()

	if !ok {
		var cancel func()
		if h.sub != nil {
			c, err := h.sub.SubscribeTrip(tripID, func(event string, payload []byte) {
				h.Broadcast(tripID, event, json.RawMessage(payload))
			})
			if err != nil {
				return nil, fmt.Errorf("subscribe trip %s: %w", tripID, err)
			}
			cancel = c
		}

		h.mu.Lock()
		if room, ok = h.rooms[tripID]; !ok {
			room = make(map[string]*Subscription)
			h.rooms[tripID] = room
			if cancel != nil {
				h.subs[tripID] = cancel
				cancel = nil
			}
		}
		room[s.ID] = s
		h.mu.Unlock()

		// another subscriber opened the room meanwhile
		if cancel != nil {
			cancel()
		}
	}

	h.logger.Debug("subscriber joined trip", zap.String("subscription_id", s.ID),
		zap.String("trip_id", tripID.String()), zap.String("user_id", userID.String()))
	return s, nil
}

// unregister removes s and cancels the Redis subscription when the room empties.
func (h *Hub) unregister(s *Subscription) {
	h.mu.Lock()
	if room, ok := h.rooms[s.TripID]; ok {
		delete(room, s.ID)
		if len(room) == 0 {
			delete(h.rooms, s.TripID)
			if cancel, ok := h.subs[s.TripID]; ok {
				cancel()
				delete(h.subs, s.TripID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("subscriber left trip", zap.String("subscription_id", s.ID), zap.String("trip_id", s.TripID.String()))
}

// Broadcast delivers an event to local subscribers of tripID. A subscriber whose
// buffer is full is closed rather than silently missing a message.
func (h *Hub) Broadcast(tripID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	msg := Event{Event: event, Data: data}

	h.mu.RLock()
	room := make([]*Subscription, 0, len(h.rooms[tripID]))
	for _, s := range h.rooms[tripID] {
		room = append(room, s)
	}
	h.mu.RUnlock()

	for _, s := range room {
		if !s.deliver(msg) {
			h.logger.Warn("dropping slow subscriber", zap.String("subscription_id", s.ID),
				zap.String("trip_id", tripID.String()))
			s.Close()
		}
	}
}

// Publish sends an event to every subscriber of tripID on every instance.
func (h *Hub) Publish(ctx context.Context, tripID uuid.UUID, event string, payload interface{}) error {
	if h.pub == nil {
		h.Broadcast(tripID, event, payload)
		return nil
	}
	data, err := encode(payload)
	if err != nil {
		return err
	}
	return h.pub.PublishTripEvent(ctx, tripID, event, data)
}

// DisconnectUser closes every subscription held by userID, e.g. on sign-out.
func (h *Hub) DisconnectUser(userID uuid.UUID) int {
	h.mu.RLock()
	var owned []*Subscription
	for _, room := range h.rooms {
		for _, s := range room {
			if s.UserID == userID {
				owned = append(owned, s)
			}
		}
	}
	h.mu.RUnlock()

	for _, s := range owned {
		s.Close()
	}
	if len(owned) > 0 {
		h.logger.Info("closed live subscriptions for user", zap.String("user_id", userID.String()), zap.Int("count", len(owned)))
	}
	return len(owned)
}

// ListenSignOuts attaches bus: sign-outs published by any instance close the
// user's local subscriptions, and SignOut publishes to it. Call once at startup.
func (h *Hub) ListenSignOuts(bus SignOutBus) (cancel func(), err error) {
	cancel, err = bus.SubscribeSignOuts(func(userID uuid.UUID) {
		h.DisconnectUser(userID)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe sign-outs: %w", err)
	}
	h.mu.Lock()
	h.signOuts = bus
	h.mu.Unlock()
	return cancel, nil
}

// SignOut closes userID's subscriptions on this instance and, with a bus
// attached, on every other one. It returns the number closed locally.
func (h *Hub) SignOut(ctx context.Context, userID uuid.UUID) (int, error) {
	n := h.DisconnectUser(userID)
	h.mu.RLock()
	bus := h.signOuts
	h.mu.RUnlock()
	if bus == nil {
		return n, nil
	}
	if err := bus.PublishSignOut(ctx, userID); err != nil {
		return n, fmt.Errorf("publish sign-out: %w", err)
	}
	return n, nil
}

// RoomSize returns the number of local subscribers for a trip.
func (h *Hub) RoomSize(tripID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[tripID])
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	}
	return json.Marshal(payload)
}
