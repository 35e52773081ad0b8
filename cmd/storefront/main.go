package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/shopapi/shopapitest"
	"github.com/utafrali/storefront/pkg/logger"
)

func main() {
	fakeBackend := flag.String("fake-backend", "", "serve an in-memory shop backend on this address (e.g. 127.0.0.1:8081) and point the agent at it")
	flag.Parse()

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logger.
	log := logger.NewWithFormat("storefront", cfg.LogLevel, logger.Format(cfg.LogFormat), os.Stdout)
	slog.SetDefault(log)

	// Create a context that is canceled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *fakeBackend != "" {
		url, err := serveFakeBackend(ctx, *fakeBackend, log)
		if err != nil {
			log.Error("failed to start fake backend", slog.String("error", err.Error()))
			os.Exit(1)
		}
		cfg.ShopAPIBaseURL = url
	}

	log.Info("starting storefront agent",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("shop_api", cfg.ShopAPIBaseURL),
		slog.String("storage", cfg.StorageBackend),
	)

	// Create the application with all dependencies wired.
	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Run the application. This blocks until shutdown.
	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("storefront agent stopped")
}

// serveFakeBackend runs the in-memory shop backend on addr until ctx ends and
// returns its base URL.
func serveFakeBackend(ctx context.Context, addr string, log *slog.Logger) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	srv := &http.Server{Handler: shopapitest.New(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("fake backend stopped", slog.String("error", err.Error()))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	log.Warn("using in-memory fake shop backend", slog.String("addr", ln.Addr().String()))
	return "http://" + ln.Addr().String(), nil
}
