package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yatri-app/backend/internal/auth"
)

type brokenRevoker struct{}

func (brokenRevoker) Revoke(context.Context, string, time.Time) error { return nil }
func (brokenRevoker) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func newRouter(authn *auth.Authenticator, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(logger))
	r.GET("/me", JWT(authn, logger), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(ContextUserID).(uuid.UUID).String())
	})
	return r
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	authn := auth.NewAuthenticator(jwtSvc, auth.NewMemoryRevoker())
	r := newRouter(authn, zap.NewNop())

	userID := uuid.New()
	token, _, err := jwtSvc.Generate(userID, "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Token "+token).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer garbage").Code)

	w := get(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	claims, err := jwtSvc.Validate(token)
	require.NoError(t, err)
	require.NoError(t, authn.Revoke(context.Background(), claims))
	w = get(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "signed out")
}

func TestJWTMiddlewareRevocationBackendDown(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	r := newRouter(auth.NewAuthenticator(jwtSvc, brokenRevoker{}), zap.NewNop())
	token, _, err := jwtSvc.Generate(uuid.New(), "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, get(r, "Bearer "+token).Code)
}

func TestLoggerIncludesViewer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	jwtSvc := auth.NewJWTService("secret", 1)
	r := newRouter(auth.NewAuthenticator(jwtSvc, auth.NewMemoryRevoker()), zap.New(core))
	userID := uuid.New()
	token, _, err := jwtSvc.Generate(userID, "a@example.com")
	require.NoError(t, err)

	get(r, "Bearer "+token)
	get(r, "")

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, userID.String(), entries[0].ContextMap()["user_id"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	_, ok := entries[1].ContextMap()["user_id"]
	assert.False(t, ok)
}

func TestCORS(t *testing.T) {
	h := CORS("http://localhost:3000, http://localhost:5173", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/trips", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/trips", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, []string{"a", "b"}, ParseOrigins(" a, ,b "))
}
