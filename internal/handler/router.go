package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/docs-assistant/backend/internal/handler/assistant"
	"github.com/zhouzirui/docs-assistant/backend/internal/handler/chat"
	"github.com/zhouzirui/docs-assistant/backend/internal/handler/socket"
	"github.com/zhouzirui/docs-assistant/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/docs-assistant/backend/internal/middleware"
	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
	chatService "github.com/zhouzirui/docs-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/docs-assistant/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, profile catalog.Profile, corsOrigins []string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(corsOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": chatSvc.SessionCount(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		assistant.New(profile).RegisterRoutes(api)
		chat.New(chatSvc).RegisterRoutes(api)
		stream.New(chatSvc, logger.Named("stream")).RegisterRoutes(api)
		socket.New(chatSvc, logger.Named("websocket")).RegisterRoutes(api)
	})

	return r
}
