// Package tripchat is the members-only chat attached to each trip.
package tripchat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/realtime"
	"github.com/yatri-app/backend/internal/store"
	"github.com/yatri-app/backend/pkg/retry"
)

const (
	// EventTripMessage carries one new ChatMessage.
	EventTripMessage = "trip_message"
	// MaxContentLen is the longest message accepted, in characters.
	MaxContentLen = 2000

	defaultTimeout = 15 * time.Second
	unknownSender  = "Traveler"
)

// ChatMessage is a trip message enriched with its sender's profile.
type ChatMessage struct {
	models.TripMessage
	SenderName     string `json:"sender_name"`
	SenderVerified bool   `json:"sender_verified"`
}

// TranscriptSigner issues download links for archived transcripts.
type TranscriptSigner interface {
	PresignTranscript(ctx context.Context, key string) (string, error)
}

// Channel reads, writes and streams trip messages for members only.
type Channel struct {
	store   store.Store
	hub     *realtime.Hub
	signer  TranscriptSigner
	logger  *zap.Logger
	timeout time.Duration
	retry   retry.Policy
}

// NewChannel creates a trip chat channel. signer may be nil when archiving is disabled.
func NewChannel(st store.Store, hub *realtime.Hub, signer TranscriptSigner, logger *zap.Logger, timeout time.Duration) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Channel{store: st, hub: hub, signer: signer, logger: logger, timeout: timeout, retry: retry.DefaultPolicy}
}

func (ch *Channel) read(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, ch.retry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, ch.timeout)
		defer cancel()
		return fn(ctx)
	})
}

// authorize loads the trip and checks that viewerID is one of its members.
func (ch *Channel) authorize(ctx context.Context, tripID, viewerID uuid.UUID) (*models.Trip, error) {
	trip, err := ch.store.Trips().GetTrip(ctx, tripID)
	if err != nil {
		return nil, store.Translate("tripchat.authorize", err, "trip not found")
	}
	ok, err := ch.store.Members().IsMember(ctx, tripID, viewerID)
	if err != nil {
		return nil, store.Translate("tripchat.authorize", err, "trip not found")
	}
	if !ok {
		return nil, apperr.Forbidden("only trip members can use this chat")
	}
	return trip, nil
}

// Authorize reports whether viewerID may read and write the trip's chat.
func (ch *Channel) Authorize(ctx context.Context, tripID, viewerID uuid.UUID) error {
	return ch.read(ctx, func(ctx context.Context) error {
		_, err := ch.authorize(ctx, tripID, viewerID)
		return err
	})
}

// FetchHistory returns the trip's messages oldest first, each with its sender's
// name resolved through one batched profile lookup.
func (ch *Channel) FetchHistory(ctx context.Context, tripID, viewerID uuid.UUID) ([]ChatMessage, error) {
	var out []ChatMessage
	err := ch.read(ctx, func(ctx context.Context) error {
		if _, err := ch.authorize(ctx, tripID, viewerID); err != nil {
			return err
		}
		msgs, err := ch.store.Messages().ListMessages(ctx, tripID)
		if err != nil {
			return store.Translate("tripchat.history", err, "trip not found")
		}
		out, err = ch.enrich(ctx, msgs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (ch *Channel) enrich(ctx context.Context, msgs []models.TripMessage) ([]ChatMessage, error) {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, m := range msgs {
		if _, ok := seen[m.UserID]; !ok {
			seen[m.UserID] = struct{}{}
			ids = append(ids, m.UserID)
		}
	}
	profiles, err := ch.store.Users().GetProfiles(ctx, ids)
	if err != nil {
		return nil, store.Translate("tripchat.profiles", err, "profile not found")
	}
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = withSender(m, profiles)
	}
	return out, nil
}

func withSender(m models.TripMessage, profiles map[uuid.UUID]models.Profile) ChatMessage {
	cm := ChatMessage{TripMessage: m, SenderName: unknownSender}
	if p, ok := profiles[m.UserID]; ok {
		cm.SenderName = p.DisplayName
		cm.SenderVerified = p.Verified
	}
	return cm
}

// NormalizeContent trims content and enforces the length bounds.
func NormalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Validation("message cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return "", apperr.Validation("message is too long")
	}
	return content, nil
}

// Send stores a message and publishes it to live subscribers. The caller should
// render it from the subscription, not from the return value, so every viewer
// sees the same order.
func (ch *Channel) Send(ctx context.Context, tripID, senderID uuid.UUID, content string) (*ChatMessage, error) {
	content, err := NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ch.timeout)
	defer cancel()

	trip, err := ch.authorize(ctx, tripID, senderID)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusOpen {
		return nil, apperr.Conflict("this trip has ended and its chat is read-only")
	}

	msg := models.TripMessage{TripID: tripID, UserID: senderID, Content: content}
	if err := ch.store.Messages().CreateMessage(ctx, &msg); err != nil {
		if errors.Is(err, store.ErrForbidden) {
			return nil, apperr.Forbidden("only trip members can use this chat")
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("this trip has ended and its chat is read-only")
		}
		return nil, store.Translate("tripchat.send", err, "trip not found")
	}

	profiles, err := ch.store.Users().GetProfiles(ctx, []uuid.UUID{senderID})
	if err != nil {
		ch.logger.Warn("sender profile lookup failed", zap.String("user_id", senderID.String()), zap.Error(err))
	}
	out := withSender(msg, profiles)

	if err := ch.hub.Publish(ctx, tripID, EventTripMessage, out); err != nil {
		ch.logger.Warn("publish trip message failed", zap.String("trip_id", tripID.String()),
			zap.String("message_id", msg.ID.String()), zap.Error(err))
	}
	return &out, nil
}

// Subscribe streams new messages of tripID to onMessage until the returned
// unsubscribe is called, ctx ends, or the hub drops the subscription.
func (ch *Channel) Subscribe(ctx context.Context, tripID, viewerID uuid.UUID, onMessage func(ChatMessage)) (func(), error) {
	if err := ch.Authorize(ctx, tripID, viewerID); err != nil {
		return nil, err
	}
	sub, err := ch.hub.Subscribe(tripID, viewerID)
	if err != nil {
		return nil, apperr.Transient("tripchat.subscribe", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case <-sub.Done():
				return
			case ev := <-sub.Events():
				msg, ok := ch.decode(ctx, ev)
				if ok {
					onMessage(msg)
				}
			}
		}
	}()
	return sub.Close, nil
}

// decode turns a hub event into a ChatMessage, resolving the sender name with a
// single lookup when the publisher did not include it.
func (ch *Channel) decode(ctx context.Context, ev realtime.Event) (ChatMessage, bool) {
	if ev.Event != EventTripMessage {
		return ChatMessage{}, false
	}
	var msg ChatMessage
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		ch.logger.Warn("invalid trip message event", zap.Error(err))
		return ChatMessage{}, false
	}
	if msg.SenderName == "" {
		msg.SenderName = unknownSender
		lookupCtx, cancel := context.WithTimeout(ctx, ch.timeout)
		profiles, err := ch.store.Users().GetProfiles(lookupCtx, []uuid.UUID{msg.UserID})
		cancel()
		if err == nil {
			msg = withSender(msg.TripMessage, profiles)
		}
	}
	return msg, true
}

// TranscriptURL returns a temporary download link for an archived trip's chat.
func (ch *Channel) TranscriptURL(ctx context.Context, tripID, viewerID uuid.UUID) (string, error) {
	var key string
	err := ch.read(ctx, func(ctx context.Context) error {
		trip, err := ch.authorize(ctx, tripID, viewerID)
		if err != nil {
			return err
		}
		key = trip.TranscriptKey
		return nil
	})
	if err != nil {
		return "", err
	}
	if key == "" || ch.signer == nil {
		return "", apperr.NotFound("transcript is not available yet")
	}
	url, err := ch.signer.PresignTranscript(ctx, key)
	if err != nil {
		return "", apperr.Transient("tripchat.transcript", err)
	}
	return url, nil
}
