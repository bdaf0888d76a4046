package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authService "github.com/zhouzirui/chat-app/backend/internal/service/auth"
	"github.com/zhouzirui/chat-app/backend/pkg/utils"
)

// Handler 登录与注册的HTTP处理器
type Handler struct {
	authSvc *authService.Service
	logger  *zap.Logger
}

// New 创建认证处理器
func New(authSvc *authService.Service, logger *zap.Logger) *Handler {
	return &Handler{authSvc: authSvc, logger: logger}
}

// RegisterRoutes 注册认证相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/signup", h.handleSignup)
}

type signupResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// handleLogin 校验表单凭证并签发访问令牌
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "invalid form body")
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		utils.RespondError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	u, err := h.authSvc.Authenticate(r.Context(), username, password)
	if errors.Is(err, authService.ErrInvalidCredentials) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		utils.RespondError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.String("user", username), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := h.authSvc.IssueToken(u.Username)
	if err != nil {
		h.logger.Error("issue token failed", zap.String("user", u.Username), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	utils.RespondJSON(w, http.StatusOK, token)
}

// handleSignup 创建新账号
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	created, err := h.authSvc.Signup(r.Context(), payload.Username, payload.Password)
	switch {
	case errors.Is(err, authService.ErrInvalidInput):
		utils.RespondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, authService.ErrUsernameTaken):
		utils.RespondError(w, http.StatusBadRequest, "Username already registered")
		return
	case err != nil:
		h.logger.Error("signup failed", zap.String("user", payload.Username), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("user registered", zap.String("user", created.Username), zap.Int64("id", created.ID))
	utils.RespondJSON(w, http.StatusOK, signupResponse{ID: created.ID, Username: created.Username})
}
