// Package main boots the stockscan HTTP server: the scan intake, the
// session state machine, and the remote store client behind it.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockscan/stockscan/internal/airtable"
	"github.com/stockscan/stockscan/internal/app"
	"github.com/stockscan/stockscan/internal/clock"
	"github.com/stockscan/stockscan/internal/config"
	"github.com/stockscan/stockscan/internal/cooldown"
	httpapi "github.com/stockscan/stockscan/internal/http"
	"github.com/stockscan/stockscan/internal/obs"
	"github.com/stockscan/stockscan/internal/scanner"
)

func main() {
	obs.InitLogger(slog.LevelInfo)
	cfg, err := config.Load()
	if err != nil {
		obs.Logger.Error("config_error", "error", err)
		os.Exit(1)
	}
	obs.Logger.Info("service_starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.New()
	cache, err := newCooldownCache(ctx, cfg, clk)
	if err != nil {
		obs.Logger.Error("cooldown_cache_error", "error", err)
		os.Exit(1)
	}

	store := airtable.New(cfg, cache, clk)
	machine := app.NewMachine(cfg, store, clk)
	defer machine.Close()

	scans := scanner.NewChannelSource(16)
	pump := scanner.NewPump(scans, func(ctx context.Context, raw string) {
		_ = machine.HandleScan(ctx, raw)
	})
	pumpDone := make(chan error, 1)
	go func() { pumpDone <- pump.Run(ctx) }()

	a := httpapi.NewApp(cfg, machine, scans)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	// Stop the scan session first so no transition starts mid-shutdown.
	cancel()
	if err := <-pumpDone; err != nil {
		obs.Logger.Warn("scan_pump_error", "error", err)
	}

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	obs.Logger.Info("service_stopped")
}

// newCooldownCache picks the shared Redis cache when an address is
// configured and the in-process one otherwise.
func newCooldownCache(ctx context.Context, cfg config.Config, clk clock.Clock) (cooldown.Cache, error) {
	if cfg.RedisAddr == "" {
		return cooldown.NewMemory(clk, cfg.CooldownWindow), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return cooldown.NewRedis(ctx, client, cfg.CooldownWindow)
}
