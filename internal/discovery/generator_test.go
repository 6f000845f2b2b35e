package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/pkg/cache"
)

func provider(t *testing.T, calls *int32, content string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "json_object", req.ResponseFormat.Type)
			assert.Contains(t, req.Messages[1].Content, "Search: ")
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"type":"server_error","message":"overloaded"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

const spitiJSON = `{"destinations":[{"name":"Spiti Valley","region":"Himachal Pradesh","description":"High desert valley"}],"stays":[{"name":"Kaza homestay","location":"Kaza"}]}`

func TestGenerateCachesByNormalizedQuery(t *testing.T) {
	var calls int32
	srv := provider(t, &calls, spitiJSON, http.StatusOK)
	g := NewGenerator(Config{Endpoint: srv.URL, APIKey: "sk-test"}, srv.Client(), cache.NewMemory(nil, 8), nil)
	ctx := context.Background()

	out, err := g.Generate(ctx, Request{Query: "spiti  valley", PageContext: "Trips"})
	require.NoError(t, err)
	require.Len(t, out.Destinations, 1)
	assert.Equal(t, "Spiti Valley", out.Destinations[0].Name)
	assert.NotNil(t, out.Flights)
	assert.NotNil(t, out.Trains)

	again, err := g.Generate(ctx, Request{Query: "Spiti Valley ", PageContext: "trips"})
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = g.Generate(ctx, Request{Query: "Spiti Valley", PageContext: "stays"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateAcceptsFencedJSON(t *testing.T) {
	var calls int32
	srv := provider(t, &calls, "```json\n"+spitiJSON+"\n```", http.StatusOK)
	g := NewGenerator(Config{Endpoint: srv.URL, APIKey: "sk-test"}, srv.Client(), nil, nil)

	out, err := g.Generate(context.Background(), Request{Query: "spiti"})
	require.NoError(t, err)
	assert.Len(t, out.Stays, 1)
}

func TestGenerateValidation(t *testing.T) {
	g := NewGenerator(Config{Endpoint: "http://127.0.0.1:0"}, nil, nil, nil)
	_, err := g.Generate(context.Background(), Request{Query: "   "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = g.Generate(context.Background(), Request{Query: strings.Repeat("a", 201)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestHandlerHidesProviderError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var calls int32
	srv := provider(t, &calls, "", http.StatusInternalServerError)
	g := NewGenerator(Config{Endpoint: srv.URL, APIKey: "sk-test"}, srv.Client(), nil, nil)
	r := gin.New()
	r.POST("/discover", NewHandler(g).Discover)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/discover", strings.NewReader(`{"query":"goa","page_context":"stays"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to generate suggestions")
	assert.NotContains(t, w.Body.String(), "overloaded")
}
