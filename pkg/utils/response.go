package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/zhouzirui/docs-assistant/backend/internal/observability"
)

// ErrorBody 是助手接口统一的错误响应体
type ErrorBody struct {
	Error string `json:"error"`
}

// RespondJSON 以JSON写出会话、记录等助手接口的响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		observability.Named("http").Warn("failed to encode response",
			zap.Int("status", status),
			zap.Error(err))
	}
}

// RespondError 写出 {"error": message}，挂件据此提示用户
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{Error: message})
}
