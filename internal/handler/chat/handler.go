package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-app/backend/internal/middleware"
	chatService "github.com/zhouzirui/chat-app/backend/internal/service/chat"
	"github.com/zhouzirui/chat-app/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	tokens  middleware.TokenParser
	logger  *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, tokens middleware.TokenParser, logger *zap.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		tokens:  tokens,
		logger:  logger,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireBearer(h.tokens)).Get("/chats", h.handleHistory)
}

// handleHistory 返回当前用户的全部聊天记录
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.Username(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	records, err := h.chatSvc.History(r.Context(), username)
	if err != nil {
		h.logger.Error("load history failed", zap.String("user", username), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	utils.RespondJSON(w, http.StatusOK, records)
}
