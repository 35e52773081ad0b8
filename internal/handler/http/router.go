package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/seller"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// Deps holds everything the router needs.
type Deps struct {
	Cart     *cart.Service
	Catalog  *catalog.Catalog
	Wishlist *catalog.Wishlist
	Seller   *seller.Service
	Session  *session.Session
	Health   *health.Handler
	CORS     middleware.CORSConfig
	// PprofCIDRs enables /debug/pprof for the listed networks.
	PprofCIDRs []string
}

// SessionIdentity resolves the request identity from the agent's session.
func SessionIdentity(s *session.Session) middleware.IdentityFunc {
	return func(context.Context) middleware.Identity {
		return middleware.Identity{UserID: s.UserID(), Authenticated: s.LoggedIn()}
	}
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(deps Deps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.Identify(SessionIdentity(deps.Session)))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(deps.CORS))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if len(deps.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, deps.PprofCIDRs, logger)
	}

	cartHandler := NewCartHandler(deps.Cart, deps.Catalog, logger)
	productHandler := NewProductHandler(deps.Catalog, logger)
	wishlistHandler := NewWishlistHandler(deps.Wishlist, deps.Catalog, deps.Cart, logger)
	sessionHandler := NewSessionHandler(deps.Session, logger)
	sellerHandler := NewSellerHandler(deps.Seller, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NoStore)

		// Long-lived stream: no compression or timeout.
		r.Get("/cart/events", cartHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(30 * time.Second))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Get("/cards", cartHandler.GetCards)
				r.Post("/sync", cartHandler.Sync)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
				r.Delete("/items/{productId}", cartHandler.RemoveItem)
			})

			r.Get("/products/{id}", productHandler.GetProduct)

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlistHandler.GetWishlist)
				r.Put("/{productId}", wishlistHandler.AddItem)
				r.Delete("/{productId}", wishlistHandler.RemoveItem)
				r.Post("/{productId}/cart", wishlistHandler.MoveToCart)
			})

			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Post("/", sessionHandler.Login)
				r.Delete("/", sessionHandler.Logout)
			})

			r.Route("/seller", func(r chi.Router) {
				r.With(middleware.CacheControl(3600)).Get("/categories", sellerHandler.Categories)
				r.With(middleware.RequireAuth).Post("/products", sellerHandler.CreateProduct)
			})
		})
	})

	return r
}
