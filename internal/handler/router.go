package handler

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-app/backend/internal/config"
	"github.com/zhouzirui/chat-app/backend/internal/handler/auth"
	"github.com/zhouzirui/chat-app/backend/internal/handler/chat"
	middlewarePkg "github.com/zhouzirui/chat-app/backend/internal/middleware"
	authService "github.com/zhouzirui/chat-app/backend/internal/service/auth"
	chatService "github.com/zhouzirui/chat-app/backend/internal/service/chat"
	"github.com/zhouzirui/chat-app/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.ServerConfig, authSvc *authService.Service, chatSvc *chatService.Service, hub *chat.Hub, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	auth.New(authSvc, logger).RegisterRoutes(r)
	chat.New(chatSvc, authSvc, logger).RegisterRoutes(r)
	chat.NewWebSocketHandler(chatSvc, authSvc, hub, logger).RegisterWebSocketRoutes(r)

	if cfg.StaticDir != "" {
		mountStatic(r, cfg.StaticDir)
	} else {
		logger.Info("STATIC_DIR not set, browser client not served")
	}

	return r
}

// mountStatic serves the browser client: index.html at "/" and assets under /static.
func mountStatic(r chi.Router, dir string) {
	files := http.FileServer(http.Dir(dir))
	r.Handle("/static/*", http.StripPrefix("/static/", files))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, filepath.Join(dir, "index.html"))
	})
}
