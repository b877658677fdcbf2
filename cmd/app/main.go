package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clob_go/internal/app"
)

func main() {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initial market load, then push-driven refreshes
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := bootstrap.Store.RefreshMarket(loadCtx); err != nil {
		slog.Error("Initial market refresh failed", slog.Any("error", err))
	}
	cancel()

	bootstrap.StartSubscriber(ctx)

	// 4. HTTP surface runs until the shutdown signal
	addr := bootstrap.Config.API.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	slog.InfoContext(ctx, "✨ CLOB client fully operational. Press Ctrl+C to exit.")
	if err := bootstrap.API.Start(ctx, addr); err != nil {
		slog.Error("HTTP server failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
