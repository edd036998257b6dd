package assistant

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/docs-assistant/backend/pkg/utils"
)

// Handler 提供助手挂件的展示信息
type Handler struct {
	profile catalog.Profile
}

// New 创建助手信息处理器
func New(profile catalog.Profile) *Handler {
	return &Handler{profile: profile}
}

// View 是挂件渲染所需的全部信息，embedded 由调用方按页面决定。
type View struct {
	catalog.Profile
	Embedded bool `json:"embedded"`
}

// RegisterRoutes 注册助手相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assistant", h.handleGetAssistant)
}

// handleGetAssistant 返回挂件信息，embedded 默认为 true
func (h *Handler) handleGetAssistant(w http.ResponseWriter, r *http.Request) {
	embedded := true
	if raw := r.URL.Query().Get("embedded"); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "embedded must be a boolean")
			return
		}
		embedded = val
	}

	utils.RespondJSON(w, http.StatusOK, View{Profile: h.profile, Embedded: embedded})
}
