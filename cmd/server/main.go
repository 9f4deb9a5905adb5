package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hiddo/internal/api"
	"hiddo/internal/config"
	"hiddo/internal/db"
	"hiddo/internal/email"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting server", "name", cfg.Server.Name)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	cleanupService := db.NewCleanupService(
		db.NewVerificationTokenRepository(database),
		db.NewVerificationSessionRepository(database),
		db.NewRefreshTokenRepository(database),
	)
	storySweeper := db.NewStorySweeper(db.NewStoryRepository(database))
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	go cleanupService.Start(sweepCtx)
	go storySweeper.Start(sweepCtx)

	sender := email.NewSender(cfg.Email.SMTP)
	if cfg.Email.SMTP.Host == "" {
		slog.Warn("no smtp host configured, verification codes will be logged")
	} else {
		slog.Info("email configured", "host", cfg.Email.SMTP.Host, "port", cfg.Email.SMTP.Port)
	}

	server := api.NewServer(cfg, database, sender)

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	sweepCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
