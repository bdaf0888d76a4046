package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-app/backend/internal/middleware"
	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
	chatService "github.com/zhouzirui/chat-app/backend/internal/service/chat"
)

const (
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = 54 * time.Second
)

// Frames sent back when a message cannot be answered.
const (
	MalformedMessage    = "Malformed message."
	InvalidTokenMessage = "Invalid access token. Please Log Out and Log In Again."
	UnavailableMessage  = "The assistant is unavailable right now. Please try again later."
)

// WebSocketHandler WebSocket聊天处理器
type WebSocketHandler struct {
	chatSvc  *chatService.Service
	tokens   middleware.TokenParser
	hub      *Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader

	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatService.Service, tokens middleware.TokenParser, hub *Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		tokens:  tokens,
		hub:     hub,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pongWait:   defaultPongWait,
		pingPeriod: defaultPingPeriod,
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/chat", h.handleWebSocket)
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := h.hub.register(ws)
	logger := h.logger.With(zap.String("conn", conn.id))
	logger.Info("websocket connected", zap.String("remote", r.RemoteAddr))

	defer func() {
		h.hub.unregister(conn)
		ws.Close()
		logger.Info("websocket closed")
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadDeadline(time.Now().Add(h.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	go h.pingLoop(ctx, conn)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		// Pongs are not read while a reply is generated.
		h.handleFrame(ctx, conn, logger, data)
		ws.SetReadDeadline(time.Now().Add(h.pongWait))
	}
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, conn *connection, logger *zap.Logger, data []byte) {
	var frame chat.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.send(conn, logger, MalformedMessage, h.chatSvc.Stamp())
		return
	}

	username, err := h.tokens.ParseToken(frame.AccessToken)
	if err != nil {
		h.send(conn, logger, InvalidTokenMessage, h.chatSvc.Stamp())
		return
	}

	reply, err := h.chatSvc.Exchange(ctx, username, frame.Message)
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage):
		return
	case err != nil:
		logger.Error("chat exchange failed", zap.String("user", username), zap.Error(err))
		h.send(conn, logger, UnavailableMessage, h.chatSvc.Stamp())
		return
	}

	h.send(conn, logger, reply.Message, reply.Time)
}

func (h *WebSocketHandler) send(conn *connection, logger *zap.Logger, message, stamp string) {
	if err := conn.writeJSON(chat.OutboundFrame{Message: message, Time: stamp}); err != nil {
		logger.Warn("websocket write failed", zap.Error(err))
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *connection) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
