package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/chat"
	chatService "github.com/zhouzirui/docs-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/docs-assistant/backend/pkg/utils"
)

const (
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 54 * time.Second
	outboundBuffer = 16
)

// Handler WebSocket会话处理器
type Handler struct {
	chatSvc  *chatService.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// ConnectedMessage 连接建立时下发的会话快照
type ConnectedMessage struct {
	Messages []chat.Message `json:"messages"`
	Busy     bool           `json:"busy"`
}

// ErrorMessage 错误消息
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OutgoingMessage 服务端下发的消息帧
type OutgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
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

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	log := h.logger.With(zap.String("session_id", sessionID))
	log.Info("websocket connected")

	events, unsubscribe := conv.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan OutgoingMessage, outboundBuffer)
	outbound <- OutgoingMessage{
		Type:      "connected",
		SessionID: sessionID,
		Data:      ConnectedMessage{Messages: conv.Transcript(), Busy: conv.Busy()},
		Timestamp: time.Now().Unix(),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		h.writeLoop(ctx, conn, sessionID, events, outbound)
	}()

	h.readLoop(ctx, conn, conv, sessionID, outbound)
	cancel()
	<-done
	log.Info("websocket disconnected")
}

// readLoop 读取客户端消息，直到连接关闭
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, conv *chatService.Conversation, sessionID string, outbound chan<- OutgoingMessage) {
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.enqueueError(ctx, outbound, "session_mismatch", "session mismatch")
			continue
		}

		switch msg.Type {
		case "text":
			var text TextMessage
			if err := json.Unmarshal(msg.Data, &text); err != nil {
				h.enqueueError(ctx, outbound, "invalid_payload", "invalid text payload")
				continue
			}
			h.submit(ctx, conv, text.Text, outbound)
		default:
			h.enqueueError(ctx, outbound, "unsupported_type", "unsupported message type: "+msg.Type)
		}
	}
}

func (h *Handler) submit(ctx context.Context, conv *chatService.Conversation, text string, outbound chan<- OutgoingMessage) {
	err := conv.Submit(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, chatService.ErrEmptyInput):
		h.enqueueError(ctx, outbound, "empty_input", err.Error())
	case errors.Is(err, chatService.ErrBusy):
		h.enqueueError(ctx, outbound, "busy", err.Error())
	case errors.Is(err, chatService.ErrConversationClosed):
		h.enqueueError(ctx, outbound, "session_closed", err.Error())
	default:
		h.enqueueError(ctx, outbound, "internal", err.Error())
	}
}

func (h *Handler) enqueueError(ctx context.Context, outbound chan<- OutgoingMessage, code, message string) {
	select {
	case outbound <- OutgoingMessage{
		Type:      "error",
		Data:      ErrorMessage{Code: code, Message: message},
		Timestamp: time.Now().Unix(),
	}:
	case <-ctx.Done():
	}
}

// writeLoop 是连接上唯一的写入者：转发会话事件、错误帧和心跳ping
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sessionID string, events <-chan chatService.Event, outbound <-chan OutgoingMessage) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(msg OutgoingMessage) error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(msg)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbound:
			if err := write(msg); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := write(OutgoingMessage{
				Type:      string(ev.Type),
				SessionID: sessionID,
				Data:      ev,
				Timestamp: time.Now().Unix(),
			}); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
