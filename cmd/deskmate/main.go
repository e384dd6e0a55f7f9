package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"deskmate/internal/bridge"
	"deskmate/internal/chat"
	"deskmate/internal/config"
	"deskmate/internal/crypto"
	"deskmate/internal/host"
	"deskmate/internal/httpapi"
	"deskmate/internal/modelconfig"
	"deskmate/internal/ratelimit"
	"deskmate/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("workspace", cfg.Workspace).
		Str("socket", cfg.Bridge.SocketPath).
		Str("chat_mode", cfg.Chat.InitialMode).
		Msg("starting deskmate host")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, "migrations")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	var limiter *ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		limiter = ratelimit.New(rdb, cfg.Redis.RatePerMinute)
	}

	keyring, err := crypto.NewKeyring(cfg.Crypto.CurrentKeyID, cfg.Crypto.Keys)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize keyring")
	}

	configStore, err := modelconfig.NewStore(ctx, store, keyring, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load model configurations")
	}

	modes := chat.NewModeController(cfg.Chat.InitialMode)
	orchestrator := chat.New(chat.Options{
		Configs:      configStore,
		DB:           store,
		Modes:        modes,
		Limiter:      limiter,
		SystemPrompt: cfg.Chat.SystemPrompt,
		HTTPClient:   &http.Client{Timeout: cfg.HTTP.ClientTimeout},
		MaxRetries:   cfg.HTTP.MaxRetries,
		BackoffBase:  cfg.HTTP.BackoffBase,
		Logger:       log.Logger,
	})

	if err := os.MkdirAll(cfg.Workspace, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create workspace dir")
	}

	router := bridge.NewRouter()
	host.NewService(host.Config{
		Store:        configStore,
		Orchestrator: orchestrator,
		Modes:        modes,
		DB:           store,
		Workspace:    cfg.Workspace,
		Logger:       log.Logger,
	}).Register(router)

	if err := os.MkdirAll(filepath.Dir(cfg.Bridge.SocketPath), 0o700); err != nil {
		log.Fatal().Err(err).Msg("failed to create socket dir")
	}
	// Stale socket from an unclean shutdown.
	_ = os.Remove(cfg.Bridge.SocketPath)
	listener, err := net.Listen("unix", cfg.Bridge.SocketPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen on bridge socket")
	}
	defer os.Remove(cfg.Bridge.SocketPath)

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("socket", cfg.Bridge.SocketPath).Msg("bridge server started")
		if err := bridge.NewServer(router, log.Logger).Serve(ctx, listener); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("bridge server: %w", err)
		}
	}()

	api := httpapi.NewServer(httpapi.Config{
		DB:            store,
		ClientTimeout: cfg.HTTP.ClientTimeout,
		HealthPath:    cfg.HTTP.HealthPath,
		MetricsPath:   cfg.HTTP.MetricsPath,
		Logger:        log.Logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
