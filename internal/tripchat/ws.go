package tripchat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/internal/realtime"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	readLimit    = 16 * 1024
)

// Presence is the liveness collaborator fed by WebSocket connections.
type Presence interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

// TokenValidator resolves a bearer token to the user id it was issued for.
type TokenValidator func(ctx context.Context, token string) (uuid.UUID, error)

// WSHandler upgrades GET /ws?trip_id=&token= into a live chat session.
type WSHandler struct {
	channel  *Channel
	presence Presence
	validate TokenValidator
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWSHandler creates the WebSocket endpoint. presence may be nil.
func NewWSHandler(channel *Channel, presence Presence, validate TokenValidator, allowedOrigins []string, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		channel:  channel,
		presence: presence,
		validate: validate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// wsConn is one client connection. Only writePump writes to conn.
type wsConn struct {
	h       *WSHandler
	conn    *websocket.Conn
	session *Session
	userID  uuid.UUID
	send    chan realtime.Event
}

// sendMessage is the payload of the client's send_message event.
type sendMessage struct {
	Content string `json:"content"`
}

// Serve handles the upgrade and runs the connection until either side closes.
func (h *WSHandler) Serve(c *gin.Context) {
	tripID, err := uuid.Parse(c.Query("trip_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "valid trip_id required"})
		return
	}
	userID, err := h.validate(c.Request.Context(), c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session := h.channel.NewSession(tripID, userID)
	if err := session.Open(c.Request.Context()); err != nil {
		writeClose(conn, event("error", gin.H{"error": apperr.UserMessage(err, "Failed to open chat"), "code": apperr.KindOf(err)}))
		return
	}
	if h.presence != nil {
		if err := h.presence.SetOnline(context.Background(), userID); err != nil {
			h.logger.Debug("presence set online failed", zap.Error(err))
		}
	}

	wc := &wsConn{h: h, conn: conn, session: session, userID: userID, send: make(chan realtime.Event, 16)}
	wc.send <- session.historyEvent()
	wc.send <- event("ready", gin.H{"trip_id": tripID})
	go wc.writePump()
	wc.readPump()
}

func (c *wsConn) readPump() {
	defer func() {
		c.session.Close()
		_ = c.conn.Close()
		// another open connection of the same user marks it online again on its next pong
		if c.h.presence != nil {
			if err := c.h.presence.SetOffline(context.Background(), c.userID); err != nil {
				c.h.logger.Debug("presence set offline failed", zap.Error(err))
			}
		}
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.h.presence != nil {
			_ = c.h.presence.Heartbeat(context.Background(), c.userID)
		}
		return nil
	})

	for {
		var msg realtime.Event
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Event {
		case "send_message":
			var body sendMessage
			if err := json.Unmarshal(msg.Data, &body); err != nil {
				c.reply(event("send_error", gin.H{"error": "invalid message"}))
				continue
			}
			if err := c.session.Send(context.Background(), body.Content); err != nil {
				c.reply(event("send_error", gin.H{"error": apperr.UserMessage(err, "Failed to send message"), "code": apperr.KindOf(err)}))
			}
		default:
			// ignore
		}
	}
}

// reply queues an event for this client only. A full queue drops the reply.
func (c *wsConn) reply(ev realtime.Event) {
	select {
	case c.send <- ev:
	case <-c.session.Done():
	default:
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			if !c.write(ev) {
				return
			}
		case msg := <-c.session.Updates():
			if !c.write(event(EventTripMessage, msg)) {
				return
			}
		case <-c.session.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) write(ev realtime.Event) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev) == nil
}

func event(name string, payload interface{}) realtime.Event {
	data, _ := json.Marshal(payload)
	return realtime.Event{Event: name, Data: data}
}

func writeClose(conn *websocket.Conn, ev realtime.Event) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(ev)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
	_ = conn.Close()
}
