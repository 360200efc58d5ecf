package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slichti/studio-platform-dev-sub010/config"
	"github.com/slichti/studio-platform-dev-sub010/internal/postgres"
	"github.com/slichti/studio-platform-dev-sub010/internal/ratelimit"
	"github.com/slichti/studio-platform-dev-sub010/internal/redisstore"
	"github.com/slichti/studio-platform-dev-sub010/internal/room"
	httpx "github.com/slichti/studio-platform-dev-sub010/internal/transport/http"
	"github.com/slichti/studio-platform-dev-sub010/internal/transport/ws"
	"github.com/slichti/studio-platform-dev-sub010/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting studio-realtime",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version,
		"storage", cfg.Storage.Backend)

	// --- message store ---
	ctx := context.Background()
	var store room.MessageStore
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Storage.DSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()
		store = postgres.NewMessageRepository(db.Pool)
	case "redis":
		rs, err := redisstore.New(ctx, cfg.Storage.RedisURL, cfg.RedisTTL())
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rs.Close()
		store = rs
	default:
		store = room.NewMemoryStore()
	}

	// --- actors ---
	rooms := room.NewRegistry(room.ActorOptions{
		BufferSize:   cfg.Room.BufferSize,
		HistoryLimit: cfg.Room.HistoryLimit,
		Store:        store,
	})
	limits := ratelimit.NewRegistry()

	maintCtx, stopMaint := context.WithCancel(ctx)
	go rooms.Run(maintCtx, cfg.FlushInterval())
	go limits.Run(maintCtx, cfg.SweepInterval())

	// --- HTTP ---
	wsServer := ws.NewServer(rooms)
	handler := httpx.NewHandler(rooms, limits, store)
	router := httpx.NewRouter(handler, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	stopMaint()
	slog.Info("stopped")
}
