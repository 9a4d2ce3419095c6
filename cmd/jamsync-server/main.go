package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"jamsync/config"
	"jamsync/internal/acquisition"
	"jamsync/internal/audit"
	"jamsync/internal/library"
	"jamsync/internal/room"
	"jamsync/internal/streaming"
	"jamsync/internal/syncbus"
)

// Version is stamped at build time via -ldflags; left as a placeholder here.
var Version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	if len(os.Args) > 1 {
		if RunCLI(os.Args[1:], cfg) {
			return
		}
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	lib, err := library.New(cfg.LibraryPath)
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}

	auditStore, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer auditStore.Close()

	pipeline := acquisition.New(lib, cfg.DownloadsDir, cfg.DownloaderCmd, auditStore)
	engine := streaming.New(cfg.FFmpegCmd, streaming.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels})
	registry := room.NewRegistry()

	handler := syncbus.NewHandler(syncbus.Config{
		Rooms:           registry,
		Library:         lib,
		Acquirer:        pipeline,
		Engine:          engine,
		Audit:           auditStore,
		ChunkSize:       cfg.ChunkSize,
		SampleRate:      cfg.SampleRate,
		RateHz:          cfg.ClientMsgRateHz,
		RateBurst:       cfg.ClientMsgBurst,
		MaxParticipants: cfg.MaxParticipants,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	handler.Register(e)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status": "ok",
			"rooms":  registry.Count(),
			"tracks": lib.Count(),
		})
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("jam session server listening", "addr", cfg.Addr, "version", Version)
		errCh <- e.Start(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
