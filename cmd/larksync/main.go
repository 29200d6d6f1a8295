package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Haabeel/lark-sync/internal/api"
	"github.com/Haabeel/lark-sync/internal/auth"
	"github.com/Haabeel/lark-sync/internal/config"
	"github.com/Haabeel/lark-sync/internal/database"
	"github.com/Haabeel/lark-sync/internal/gateway"
	"github.com/Haabeel/lark-sync/internal/realtime"
	"github.com/Haabeel/lark-sync/internal/service"
	"github.com/Haabeel/lark-sync/internal/snowflake"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	// --- Infrastructure ---

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	source, err := realtime.NewRedisSource(cfg.RedisURL)
	if err != nil {
		slog.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	sf, err := snowflake.NewGenerator(cfg.NodeID)
	if err != nil {
		slog.Error("snowflake init failed", "error", err)
		os.Exit(1)
	}
	tokenSvc := auth.NewTokenService(cfg.JWTSecret)

	// --- Repositories ---

	channels := database.NewChannelRepository(pool)
	messages := database.NewMessageRepository(pool)

	// --- Services ---

	channelSvc := service.NewChannelService(channels, sf, source)
	messageSvc := service.NewMessageService(messages, channels, sf, source)

	// --- Gateway ---

	gwManager := gateway.NewManager(tokenSvc, source, channels, messages)

	// --- Handlers ---

	deps := &api.Dependencies{
		Channels:     api.NewChannelHandler(channelSvc),
		Messages:     api.NewMessageHandler(messageSvc),
		Gateway:      gwManager,
		TokenService: tokenSvc,
		Redis:        source.Client(),
	}

	// --- Echo ---

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.SetupRouter(e, deps)

	// --- Start ---

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("larksync starting", "addr", cfg.ServerAddr)
		if err := e.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCtx.Done()
	slog.Info("shutting down")
	gwManager.CloseAll()
	if err := e.Shutdown(context.Background()); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
