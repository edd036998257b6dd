package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
	chatService "github.com/zhouzirui/docs-assistant/backend/internal/service/chat"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	chatSvc, err := chatService.NewService(context.Background(), chatService.Options{
		Catalog:  catalog.Default(),
		MinDelay: time.Millisecond,
		MaxDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = chatSvc.Shutdown(ctx)
	})
	return NewRouter(chatSvc, catalog.Default().Profile, []string{"https://docs.example.com"}, nil)
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPIRoutesMounted(t *testing.T) {
	r := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/assistant", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/session", nil))
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/session/missing/messages", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/session", nil)
	req.Header.Set("Origin", "https://docs.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, "https://docs.example.com", resp.Header().Get("Access-Control-Allow-Origin"))
}
