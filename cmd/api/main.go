package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-app/backend/internal/config"
	"github.com/zhouzirui/chat-app/backend/internal/handler"
	chatHandler "github.com/zhouzirui/chat-app/backend/internal/handler/chat"
	"github.com/zhouzirui/chat-app/backend/internal/logging"
	"github.com/zhouzirui/chat-app/backend/internal/service/ai"
	"github.com/zhouzirui/chat-app/backend/internal/service/auth"
	"github.com/zhouzirui/chat-app/backend/internal/service/chat"
	"github.com/zhouzirui/chat-app/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Warn("failed to load .env file, continuing with system environment variables only", zap.Error(envErr))
	}

	st, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("path", cfg.Store.Path), zap.Error(err))
	}
	defer st.Close()

	// Initialize AI responder
	var responder ai.Responder
	r, err := ai.NewResponder(ctx, cfg.AI, logger)
	switch {
	case errors.Is(err, ai.ErrDisabled):
		logger.Warn("no AI provider configured, assistant replies disabled (set OPENAI_API_KEY or ARK_* variables)")
	case err != nil:
		logger.Warn("failed to initialize AI responder, continuing without assistant", zap.Error(err))
	default:
		responder = r
	}

	authSvc := auth.NewService(st, cfg.Auth)
	chatSvc := chat.NewService(st, responder, chat.WithLogger(logger.Named("chat")))
	hub := chatHandler.NewHub()

	router := handler.NewRouter(cfg.Server, authSvc, chatSvc, hub, logger.Named("http"))

	startServer(ctx, cfg.Server, router, hub, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, hub *chatHandler.Hub, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	srv.RegisterOnShutdown(hub.CloseAll)

	logger.Info("chat backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
