package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/docs-assistant/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/docs-assistant/backend/internal/service/chat"
)

func setupRouter(t *testing.T, delay time.Duration) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	chatSvc, err := chatservice.NewService(context.Background(), chatservice.Options{
		Catalog:  catalog.Default(),
		MinDelay: delay,
		MaxDelay: delay,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = chatSvc.Shutdown(ctx)
	})

	r := chi.NewRouter()
	New(chatSvc).RegisterRoutes(r)
	return r, chatSvc
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) TranscriptResponse {
	t.Helper()
	resp := do(r, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	var out TranscriptResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.NotNil(t, out.Session)
	return out
}

func TestCreateSessionSeedsGreeting(t *testing.T) {
	r, _ := setupRouter(t, 0)
	out := createSession(t, r)

	require.Len(t, out.Messages, 1)
	assert.Equal(t, chat.SenderBot, out.Messages[0].Sender)
	assert.Equal(t, int64(1), out.Messages[0].ID)
	assert.False(t, out.Busy)
}

func TestSubmitAndPollTranscript(t *testing.T) {
	r, _ := setupRouter(t, 10*time.Millisecond)
	out := createSession(t, r)
	base := "/session/" + out.Session.ID + "/messages"

	resp := do(r, http.MethodPost, base, map[string]string{"text": "Hello"})
	require.Equal(t, http.StatusAccepted, resp.Code)

	resp = do(r, http.MethodPost, base, map[string]string{"text": "tell me about ROS"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	var transcript TranscriptResponse
	require.Eventually(t, func() bool {
		resp := do(r, http.MethodGet, base, nil)
		if resp.Code != http.StatusOK {
			return false
		}
		transcript = TranscriptResponse{}
		if err := json.Unmarshal(resp.Body.Bytes(), &transcript); err != nil {
			return false
		}
		return !transcript.Busy && len(transcript.Messages) == 3
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "Hello", transcript.Messages[1].Text)
	assert.Equal(t, catalog.Default().Replies()["greeting"], transcript.Messages[2].Text)
}

func TestSubmitBlankText(t *testing.T) {
	r, _ := setupRouter(t, 0)
	out := createSession(t, r)

	resp := do(r, http.MethodPost, "/session/"+out.Session.ID+"/messages", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = do(r, http.MethodGet, "/session/"+out.Session.ID+"/messages", nil)
	var transcript TranscriptResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &transcript))
	assert.Len(t, transcript.Messages, 1)
}

func TestSubmitInvalidBody(t *testing.T) {
	r, _ := setupRouter(t, 0)
	out := createSession(t, r)

	req := httptest.NewRequest(http.MethodPost, "/session/"+out.Session.ID+"/messages", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUnknownSession(t *testing.T) {
	r, _ := setupRouter(t, 0)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/session/nope/messages", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/session/nope/messages", map[string]string{"text": "hi"}).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/session/nope", nil).Code)
}

func TestEndSession(t *testing.T) {
	r, chatSvc := setupRouter(t, 0)
	out := createSession(t, r)

	resp := do(r, http.MethodDelete, "/session/"+out.Session.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Zero(t, chatSvc.SessionCount())
}

func TestRespondServiceErrorStatus(t *testing.T) {
	cases := map[error]int{
		chatservice.ErrSessionNotFound:    http.StatusNotFound,
		chatservice.ErrConversationClosed: http.StatusGone,
		chatservice.ErrBusy:               http.StatusConflict,
		chatservice.ErrEmptyInput:         http.StatusUnprocessableEntity,
		fmt.Errorf("boom"):                http.StatusInternalServerError,
	}

	for err, want := range cases {
		resp := httptest.NewRecorder()
		respondServiceError(resp, fmt.Errorf("submit: %w", err))
		assert.Equal(t, want, resp.Code, "error %v", err)
	}
}
