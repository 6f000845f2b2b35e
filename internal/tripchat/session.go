package tripchat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/internal/realtime"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateNotAuthorized State = "not_authorized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateSending       State = "sending"
	StateError         State = "error"
	StateClosed        State = "closed"
)

const updatesBuffer = 64

// Session is one viewer's live view of a trip chat. The hub subscription is
// opened before history is fetched; events that arrive meanwhile wait in the
// subscription buffer and are replayed afterwards, skipping ids already present.
type Session struct {
	ch       *Channel
	tripID   uuid.UUID
	viewerID uuid.UUID

	mu       sync.Mutex
	state    State
	lastErr  error
	history  []ChatMessage
	messages []ChatMessage
	seen     map[uuid.UUID]struct{}
	sub      *realtime.Subscription
	updates  chan ChatMessage
	done     chan struct{}
	doneOnce sync.Once
}

// NewSession creates a session in the loading state. Call Open to start it.
func (ch *Channel) NewSession(tripID, viewerID uuid.UUID) *Session {
	return &Session{
		ch:       ch,
		tripID:   tripID,
		viewerID: viewerID,
		state:    StateLoading,
		seen:     make(map[uuid.UUID]struct{}),
		updates:  make(chan ChatMessage, updatesBuffer),
		done:     make(chan struct{}),
	}
}

// Open authorizes the viewer, subscribes, loads history and moves to ready.
// A non-member ends in not_authorized; any other failure ends in error and
// Open may be called again.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.sub != nil || (s.state != StateLoading && s.state != StateError) {
		s.mu.Unlock()
		return apperr.Conflict("chat session is already open")
	}
	s.state = StateLoading
	s.mu.Unlock()

	if err := s.ch.Authorize(ctx, s.tripID, s.viewerID); err != nil {
		return s.fail(err)
	}
	sub, err := s.ch.hub.Subscribe(s.tripID, s.viewerID)
	if err != nil {
		return s.fail(apperr.Transient("tripchat.session", err))
	}
	history, err := s.ch.FetchHistory(ctx, s.tripID, s.viewerID)
	if err != nil {
		sub.Close()
		return s.fail(err)
	}

	s.mu.Lock()
	s.sub = sub
	s.history = history
	s.messages = append([]ChatMessage(nil), history...)
	for _, m := range history {
		s.seen[m.ID] = struct{}{}
	}
	s.state = StateReady
	s.lastErr = nil
	s.mu.Unlock()

	go s.pump(sub)
	return nil
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if apperr.Is(err, apperr.KindForbidden) {
		s.state = StateNotAuthorized
	} else {
		s.state = StateError
	}
	return err
}

// pump moves hub events into the session until the subscription ends.
func (s *Session) pump(sub *realtime.Subscription) {
	defer s.finish()
	for {
		select {
		case <-sub.Done():
			return
		case ev := <-sub.Events():
			msg, ok := s.ch.decode(context.Background(), ev)
			if !ok || !s.accept(msg) {
				continue
			}
			select {
			case s.updates <- msg:
			case <-sub.Done():
				return
			}
		}
	}
}

// accept records msg unless its id was already seen.
func (s *Session) accept(msg ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[msg.ID]; dup {
		return false
	}
	s.seen[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
	return true
}

// Send posts content. Only one send may be in flight; a second one is rejected.
// The sent message arrives through Updates like everyone else's.
func (s *Session) Send(ctx context.Context, content string) error {
	content, err := NormalizeContent(content)
	if err != nil {
		return err
	}

	s.mu.Lock()
	switch s.state {
	case StateSending:
		s.mu.Unlock()
		return apperr.Conflict("a message is already being sent")
	case StateReady, StateError:
		if s.sub == nil {
			s.mu.Unlock()
			return apperr.Conflict("chat session is not ready")
		}
	case StateNotAuthorized:
		s.mu.Unlock()
		return apperr.Forbidden("only trip members can use this chat")
	default:
		s.mu.Unlock()
		return apperr.Conflict("chat session is not ready")
	}
	s.state = StateSending
	s.mu.Unlock()

	_, err = s.ch.Send(ctx, s.tripID, s.viewerID, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return err
	}
	switch {
	case err == nil:
		s.state = StateReady
		s.lastErr = nil
	case apperr.Is(err, apperr.KindForbidden):
		s.state = StateNotAuthorized
		s.lastErr = err
	case apperr.Is(err, apperr.KindTransient), apperr.Is(err, apperr.KindInternal):
		s.state = StateError
		s.lastErr = err
	default:
		s.state = StateReady
	}
	return err
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that caused the current error or not_authorized state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// History returns the snapshot loaded by Open. Updates never repeats its messages.
func (s *Session) History() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.history...)
}

// Messages returns a copy of the messages seen so far, history first.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.messages...)
}

// Updates delivers live messages not already in the history snapshot.
// It is never closed; select on Done as well.
func (s *Session) Updates() <-chan ChatMessage { return s.updates }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close ends the session and releases its hub subscription.
func (s *Session) Close() {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		sub.Close()
		return
	}
	s.finish()
}

func (s *Session) finish() {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		close(s.done)
		s.ch.logger.Debug("chat session closed", zap.String("trip_id", s.tripID.String()),
			zap.String("user_id", s.viewerID.String()))
	})
}

// snapshot is the payload of the history event sent to WebSocket clients.
type snapshot struct {
	TripID   uuid.UUID     `json:"trip_id"`
	Messages []ChatMessage `json:"messages"`
}

func (s *Session) historyEvent() realtime.Event {
	data, _ := json.Marshal(snapshot{TripID: s.tripID, Messages: s.History()})
	return realtime.Event{Event: "history", Data: data}
}
