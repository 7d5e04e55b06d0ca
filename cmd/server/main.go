package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/codeinmyveins/chatverse/internal/logging"
	"github.com/codeinmyveins/chatverse/internal/server"
	"github.com/codeinmyveins/chatverse/internal/storage"
)

func main() {
	logger := logging.NewJSON(os.Stdout)
	ctx := context.Background()

	cfg := server.NewConfigFromEnv()
	server.SetConfig(cfg)

	store, err := storage.NewPostgresManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Error(ctx, "storage init failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	hub := server.NewHub(store.Messages(), logger)
	go hub.Run()

	gate := server.NewConnectionGate([]byte(cfg.JWTSecret), store.Users(), logger)
	handlers := server.NewHandlers(hub, gate, store.Messages(), logger)
	mux := server.SetupRoutes(handlers)

	httpServer := server.CreateServer(cfg.Port, mux)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server listening", "addr", cfg.Port)
		errCh <- server.StartServer(httpServer)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info(ctx, "shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server failed", "error", err)
			os.Exit(1)
		}
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		logger.Error(ctx, "http shutdown failed", "error", err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Error(ctx, "hub shutdown incomplete", "error", err)
	}

	logger.Info(ctx, "server stopped")
}
