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

	"github.com/gyaneshwarpardhi/payrelay/internal/api"
	"github.com/gyaneshwarpardhi/payrelay/internal/config"
	"github.com/gyaneshwarpardhi/payrelay/internal/dispatch"
	"github.com/gyaneshwarpardhi/payrelay/internal/notify"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if cfg.Webhook.Secret == "" {
		slog.Warn("webhook secret is empty: every inbound request will be rejected")
	}

	// ── Channel registry ──────────────────────────────────────────────────────
	client := &http.Client{Timeout: 10 * time.Second}
	receipt := notify.LoadReceipt(cfg.TemplatePath)

	reg := notify.NewRegistry()
	reg.Register(notify.NewEmail(func() config.EmailConf { return loader.Config().Notifiers.Email }, client, receipt))
	reg.Register(notify.NewTelegram(func() config.TelegramConf { return loader.Config().Notifiers.Telegram }, client))
	reg.Register(notify.NewBark(func() config.BarkConf { return loader.Config().Notifiers.Bark }, client))
	reg.Register(notify.NewDingTalk(func() config.DingTalkConf { return loader.Config().Notifiers.DingTalk }, client))

	enabled := make([]string, 0, 4)
	for _, n := range reg.Enabled() {
		enabled = append(enabled, n.Name())
	}
	slog.Info("channels configured", "enabled", enabled)

	// ── Coordinator ───────────────────────────────────────────────────────────
	coord := dispatch.New(loader, reg)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		slog.Info("config reloaded", "tolerance_s", newCfg.Webhook.ToleranceSeconds)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(coord)
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	slog.Info("goodbye")
}
