package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabcanvas/config"
	"collabcanvas/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	cfg, err := config.Load(logger, "collabcanvas")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Log.Level)).With(slog.String("service", "agent"))
	slog.SetDefault(logger)

	cache, err := OpenCache(cfg.Agent.CachePath)
	if err != nil {
		logger.Error("Failed to open cache", slog.String("path", cfg.Agent.CachePath), slog.Any("error", err))
		os.Exit(1)
	}
	defer cache.Close()
	participantID, err := cache.ParticipantID()
	if err != nil {
		logger.Error("Failed to load participant id", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logger.With(slog.String("participantID", participantID), slog.String("doc", cfg.Agent.Document))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent := newAgent(logger, cfg, cache, participantID)
	go agent.hub.run(ctx)
	go agent.relay.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(cfg.Agent.UIDir)))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(agent.hub, w, r)
	})
	srv := &http.Server{Addr: cfg.Agent.Address, Handler: mux}

	go func() {
		logger.Info("Agent is running", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("Failed to start server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
	}
	logger.Info("Agent stopped")
}
