package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tracker/internal/access"
	"tracker/internal/board"
	"tracker/internal/events"
	"tracker/internal/search"
	"tracker/internal/server"
	"tracker/internal/task"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(server.Deps{
		Users:  newUsers(store, cfg),
		Boards: board.NewRegistry(store),
		Guard:  access.NewGuard(store),
		Tasks:  task.NewEngine(store),
		Events: events.NewLog(store),
		Search: search.NewService(store),
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
