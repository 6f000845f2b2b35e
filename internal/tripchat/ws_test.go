package tripchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/realtime"
)

func newWSServer(t *testing.T, f *fixture) *httptest.Server {
	return newWSServerWithPresence(t, f, nil)
}

func newWSServerWithPresence(t *testing.T, f *fixture, presence Presence) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := map[string]uuid.UUID{"owner": f.owner, "member": f.member, "outside": f.outside}
	validate := func(_ context.Context, token string) (uuid.UUID, error) {
		id, ok := tokens[token]
		if !ok {
			return uuid.Nil, errors.New("unknown token")
		}
		return id, nil
	}

	r := gin.New()
	r.GET("/ws", NewWSHandler(f.ch, presence, validate, []string{"*"}, zap.NewNop()).Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// presenceLog records presence calls in order.
type presenceLog struct {
	mu    sync.Mutex
	calls []string
}

func (p *presenceLog) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return nil
}

func (p *presenceLog) SetOnline(context.Context, uuid.UUID) error  { return p.record("online") }
func (p *presenceLog) SetOffline(context.Context, uuid.UUID) error { return p.record("offline") }
func (p *presenceLog) Heartbeat(context.Context, uuid.UUID) error  { return p.record("heartbeat") }

func (p *presenceLog) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func dialURL(srv *httptest.Server, tripID uuid.UUID, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?trip_id=" + tripID.String() + "&token=" + token
}

func readEvent(t *testing.T, conn *websocket.Conn) realtime.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev realtime.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWSRejectsInvalidToken(t *testing.T) {
	f := newFixture(t)
	srv := newWSServer(t, f)

	_, resp, err := websocket.DefaultDialer.Dial(dialURL(srv, f.trip, "forged"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSRejectsMissingTripID(t *testing.T) {
	f := newFixture(t)
	srv := newWSServer(t, f)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=member"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWSNonMemberReceivesErrorAndClose(t *testing.T) {
	f := newFixture(t)
	srv := newWSServer(t, f)

	conn, _, err := websocket.DefaultDialer.Dial(dialURL(srv, f.trip, "outside"), nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev.Event)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	assert.Equal(t, "FORBIDDEN", body.Code)
}

func TestWSMemberGetsHistoryThenLiveMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.ch.Send(ctx, f.trip, f.owner, "welcome")
	require.NoError(t, err)
	srv := newWSServer(t, f)

	conn, _, err := websocket.DefaultDialer.Dial(dialURL(srv, f.trip, "member"), nil)
	require.NoError(t, err)
	defer conn.Close()

	history := readEvent(t, conn)
	require.Equal(t, "history", history.Event)
	var snap struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(history.Data, &snap))
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "welcome", snap.Messages[0].Content)

	assert.Equal(t, "ready", readEvent(t, conn).Event)

	data, err := json.Marshal(sendMessage{Content: "see you at the bus stand"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(realtime.Event{Event: "send_message", Data: data}))

	live := readEvent(t, conn)
	require.Equal(t, EventTripMessage, live.Event)
	var msg struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(live.Data, &msg))
	assert.Equal(t, "see you at the bus stand", msg.Content)
}

func TestWSEmptyMessageGetsSendError(t *testing.T) {
	f := newFixture(t)
	srv := newWSServer(t, f)

	conn, _, err := websocket.DefaultDialer.Dial(dialURL(srv, f.trip, "member"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "history", readEvent(t, conn).Event)
	assert.Equal(t, "ready", readEvent(t, conn).Event)

	data, _ := json.Marshal(sendMessage{Content: "   "})
	require.NoError(t, conn.WriteJSON(realtime.Event{Event: "send_message", Data: data}))
	assert.Equal(t, "send_error", readEvent(t, conn).Event)
}

func TestWSDisconnectMarksUserOffline(t *testing.T) {
	f := newFixture(t)
	log := &presenceLog{}
	srv := newWSServerWithPresence(t, f, log)

	conn, _, err := websocket.DefaultDialer.Dial(dialURL(srv, f.trip, "member"), nil)
	require.NoError(t, err)
	assert.Equal(t, "history", readEvent(t, conn).Event)
	assert.Equal(t, "ready", readEvent(t, conn).Event)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		calls := log.snapshot()
		return len(calls) > 0 && calls[len(calls)-1] == "offline"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "online", log.snapshot()[0])
}
