package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/chat"
	chatService "github.com/zhouzirui/docs-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/docs-assistant/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// TranscriptResponse 是会话当前状态的快照
type TranscriptResponse struct {
	Session  *chat.Session  `json:"session,omitempty"`
	Messages []chat.Message `json:"messages"`
	Busy     bool           `json:"busy"`
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Delete("/session/{sessionID}", h.handleEndSession)
	r.Get("/session/{sessionID}/messages", h.handleGetTranscript)
	r.Post("/session/{sessionID}/messages", h.handleSubmit)
}

// handleCreateSession 创建会话，返回带问候语的初始记录
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conv, err := h.chatSvc.Conversation(session.ID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, TranscriptResponse{
		Session:  &session,
		Messages: conv.Transcript(),
		Busy:     conv.Busy(),
	})
}

// handleEndSession 结束会话并丢弃记录
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatSvc.EndSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetTranscript 返回会话记录与忙碌状态
func (h *Handler) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chatSvc.Conversation(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, TranscriptResponse{
		Messages: conv.Transcript(),
		Busy:     conv.Busy(),
	})
}

// handleSubmit 提交用户消息，回复异步写入记录
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatSvc.Submit(r.Context(), sessionID, payload.Text); err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// respondServiceError 将服务层错误映射为HTTP状态码
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrConversationClosed):
		utils.RespondError(w, http.StatusGone, err.Error())
	case errors.Is(err, chatService.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatService.ErrEmptyInput):
		utils.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
