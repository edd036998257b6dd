package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/chat"
	chatService "github.com/zhouzirui/docs-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/docs-assistant/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler pushes transcript events to the widget via Server-Sent Events.
type Handler struct {
	chatSvc   *chatService.Service
	logger    *zap.Logger
	heartbeat time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:   chatSvc,
		logger:    logger,
		heartbeat: defaultHeartbeat,
	}
}

// Snapshot is the first event on every stream. Later message events may
// repeat a message already in the snapshot; clients dedupe by id.
type Snapshot struct {
	SessionID string         `json:"sessionId"`
	Messages  []chat.Message `json:"messages"`
	Busy      bool           `json:"busy"`
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conv, err := h.chatSvc.Conversation(sessionID)
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before the snapshot so nothing falls between the two.
	events, cancel := conv.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	log := h.logger.With(zap.String("session_id", sessionID))
	log.Debug("stream opened")
	defer log.Debug("stream closed")

	if err := utils.SendSSEEvent(w, flusher, "snapshot", Snapshot{
		SessionID: sessionID,
		Messages:  conv.Transcript(),
		Busy:      conv.Busy(),
	}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = utils.SendSSEEvent(w, flusher, "end", map[string]string{"sessionId": sessionID})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				log.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
