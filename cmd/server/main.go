package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/leadline-ai/leadline-voice-service/internal/config"
	"github.com/leadline-ai/leadline-voice-service/internal/handler"
	"github.com/leadline-ai/leadline-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// Server is the voice lead-capture service process.
type Server struct {
	config         *config.Config
	router         *mux.Router
	handlerManager *handler.HandlerManager
}

func NewServer(cfg *config.Config) (*Server, error) {
	router := mux.NewRouter()

	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		return nil, err
	}

	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}, nil
}

// Start serves until a shutdown signal arrives, then drains in-flight
// webhook requests before closing external connections.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Base().Info("starting server", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Base().Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Base().Warn("server shutdown incomplete", zap.Error(err))
	}

	s.handlerManager.Close()
	return nil
}

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := config.LoadFromEnv()

	if _, err := logger.Init(cfg.LogEnv); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	server, err := NewServer(cfg)
	if err != nil {
		logger.Base().Error("failed to initialize server", zap.Error(err))
		os.Exit(1)
	}

	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		logger.Base().Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}
