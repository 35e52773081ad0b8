package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/seller"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/shopapi"
	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront agent.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          storage.Store
	tracerShutdown func(context.Context) error
	producer       *pkgkafka.Producer
	forwarder      *event.Forwarder
	detach         func()
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Tracing. Propagators are installed even when export is disabled.
	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	tcfg.Enabled = cfg.OTELEnabled
	tracerShutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Local storage.
	database.SetSlowQueryLogging(cfg.StorageSlowQuery, logger)
	store, err := storage.Open(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		_ = tracerShutdown(ctx)
		return nil, fmt.Errorf("open storage: %w", err)
	}

	// Shop backend client.
	hcfg := httpclient.DefaultConfig()
	hcfg.Timeout = cfg.ShopAPITimeout
	hcfg.MaxRetries = cfg.ShopAPIMaxRetries
	hcfg.RateLimit = cfg.ShopAPIRateLimit
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(hcfg),
		httpclient.DefaultCircuitBreakerConfig("shop-api"),
		logger,
	)
	api := shopapi.New(cfg.ShopAPIBaseURL, breaker, logger)

	// Session, restored from storage.
	sess, err := session.New(ctx, store, api, logger)
	if err != nil {
		_ = store.Close()
		_ = tracerShutdown(ctx)
		return nil, fmt.Errorf("restore session: %w", err)
	}

	// Build the dependency graph.
	cartStore := cart.NewStore(ctx, store, logger)
	cartService := cart.NewService(cartStore, api, sess, cart.Options{
		MergePolicy:       cart.MergePolicy(cfg.CartMergePolicy),
		RollbackOnFailure: cfg.CartRollbackOnFailure,
	}, logger)
	sess.OnChange(cartService.HandleSessionChange)

	cat := catalog.New(api, cfg.AssetBase(), logger)
	wishlist := catalog.NewWishlist(ctx, store, logger)
	sellerService := seller.NewService(api, sess, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("storage", storage.Ping(store, 2*time.Second))
	healthHandler.RegisterNonCritical("shop_api", api.Ping)

	// Optional cart activity forwarding.
	var (
		producer  *pkgkafka.Producer
		forwarder *event.Forwarder
		detach    = func() {}
	)
	if len(cfg.CartEventsBrokers) > 0 {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.CartEventsBrokers), logger)
		forwarder = event.NewForwarder(producer, cfg.CartEventsTopic, sess.UserID, event.DefaultBuffer, logger)
		detach = forwarder.Attach(cartStore)
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
		logger.Info("cart activity forwarding enabled",
			slog.Any("brokers", cfg.CartEventsBrokers),
			slog.String("topic", cfg.CartEventsTopic),
		)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.AllowedOrigins
	cors.AllowCredentials = true

	router := handler.NewRouter(handler.Deps{
		Cart:       cartService,
		Catalog:    cat,
		Wishlist:   wishlist,
		Seller:     sellerService,
		Session:    sess,
		Health:     healthHandler,
		CORS:       cors,
		PprofCIDRs: cfg.PprofCIDRs,
	}, logger)

	// WriteTimeout stays unset: the cart event stream is long-lived and the
	// API routes carry their own timeout. Request contexts derive from
	// baseCtx, which is canceled when shutdown starts so open streams end
	// instead of holding Shutdown until its deadline.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	httpServer.RegisterOnShutdown(cancelBase)

	// Refresh the cart in the background when a session was restored.
	if sess.LoggedIn() {
		go func() {
			syncCtx, cancel := context.WithTimeout(context.Background(), cfg.ShopAPITimeout*2)
			defer cancel()
			if _, err := cartService.Sync(syncCtx); err != nil {
				logger.Warn("initial cart sync failed", slog.String("error", err.Error()))
			}
		}()
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		store:          store,
		tracerShutdown: tracerShutdown,
		producer:       producer,
		forwarder:      forwarder,
		detach:         detach,
		httpServer:     httpServer,
	}, nil
}

// Handler returns the HTTP handler serving the storefront API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.httpServer.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled, then shuts down.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	if a.forwarder != nil {
		go a.forwarder.Run(ctx)
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", ln.Addr().String()),
		)
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.detach()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("storage close error", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
