// Package catalog resolves products for the detail page, the wishlist and
// the cart drawer. Each lookup is independent: there is no shared cache and
// no retry beyond what the transport does, and failures are logged rather
// than returned.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// Outcome is the result of a single product lookup.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// DefaultConcurrency bounds parallel lookups for card lists.
const DefaultConcurrency = 8

// ProductAPI fetches one product.
type ProductAPI interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// View is what a product-backed component renders.
type View struct {
	Outcome Outcome         `json:"outcome"`
	Product *domain.Product `json:"product,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Catalog performs product lookups.
type Catalog struct {
	api         ProductAPI
	assetBase   string
	concurrency int
	logger      *slog.Logger
}

// New creates a catalog. assetBase is prefixed to relative image paths.
func New(api ProductAPI, assetBase string, logger *slog.Logger) *Catalog {
	return &Catalog{
		api:         api,
		assetBase:   strings.TrimRight(assetBase, "/"),
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// Lookup fetches id. It never returns an error: a missing product yields
// OutcomeNotFound and any other failure is logged and yields OutcomeError.
func (c *Catalog) Lookup(ctx context.Context, id string) View {
	p, err := c.api.GetProduct(ctx, id)
	switch {
	case err == nil:
		return View{Outcome: OutcomeFound, Product: p}
	case apperrors.IsNotFound(err):
		return View{Outcome: OutcomeNotFound, Message: "Product not found"}
	default:
		c.logger.ErrorContext(ctx, "failed to fetch product",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		return View{Outcome: OutcomeError, Message: httpclient.BackendMessage(err)}
	}
}

// AssetURL resolves a backend asset path. Absolute URLs pass through.
func (c *Catalog) AssetURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.assetBase + path
}

// lookupAll resolves ids in parallel, keeping input order.
func (c *Catalog) lookupAll(ctx context.Context, ids []string) []View {
	views := make([]View, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			views[i] = c.Lookup(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return views
}
