package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Wishlist persists the shopper's saved product ids under the wishlist key.
type Wishlist struct {
	storage storage.Store
	logger  *slog.Logger

	mu   sync.Mutex
	list domain.Wishlist
}

// NewWishlist loads the persisted wishlist; a missing or corrupt one is empty.
func NewWishlist(ctx context.Context, st storage.Store, logger *slog.Logger) *Wishlist {
	w := &Wishlist{storage: st, logger: logger}
	var ids []string
	if _, err := storage.GetJSON(ctx, st, storage.KeyWishlist, &ids); err != nil {
		logger.WarnContext(ctx, "failed to load wishlist, starting empty", slog.String("error", err.Error()))
		ids = nil
	}
	w.list = domain.NewWishlist(ids)
	return w
}

// IDs returns the saved ids in insertion order.
func (w *Wishlist) IDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.list.ProductIDs...)
}

// Contains reports whether id is saved.
func (w *Wishlist) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.list.Contains(id)
}

// Add saves id.
func (w *Wishlist) Add(ctx context.Context, id string) ([]string, error) {
	return w.update(ctx, id, func(l domain.Wishlist) domain.Wishlist { return l.Add(id) })
}

// Remove forgets id.
func (w *Wishlist) Remove(ctx context.Context, id string) ([]string, error) {
	return w.update(ctx, id, func(l domain.Wishlist) domain.Wishlist { return l.Remove(id) })
}

// Toggle flips membership of id and reports the new membership.
func (w *Wishlist) Toggle(ctx context.Context, id string) (bool, error) {
	var on bool
	_, err := w.update(ctx, id, func(l domain.Wishlist) domain.Wishlist {
		var out domain.Wishlist
		out, on = l.Toggle(id)
		return out
	})
	return on, err
}

func (w *Wishlist) update(ctx context.Context, id string, fn func(domain.Wishlist) domain.Wishlist) ([]string, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	next := fn(w.list)
	data, err := json.Marshal(next.ProductIDs)
	if err != nil {
		return nil, fmt.Errorf("encode wishlist: %w", err)
	}
	if err := w.storage.Set(ctx, storage.KeyWishlist, data); err != nil {
		return nil, fmt.Errorf("persist wishlist: %w", err)
	}
	w.list = next
	return append([]string(nil), next.ProductIDs...), nil
}

// WishlistCard is one resolved wishlist entry.
type WishlistCard struct {
	ProductID     string  `json:"productid"`
	Name          string  `json:"name"`
	Image         string  `json:"image,omitempty"`
	OfferedPrice  float64 `json:"offeredPrice"`
	OriginalPrice float64 `json:"originalPrice"`
	InStock       bool    `json:"inStock"`
}

// WishlistCards resolves every saved id. Entries that cannot be resolved
// are dropped.
func (c *Catalog) WishlistCards(ctx context.Context, w *Wishlist) []WishlistCard {
	return c.WishlistCardsFor(ctx, w.IDs())
}

// WishlistCardsFor resolves ids, dropping entries that cannot be resolved.
func (c *Catalog) WishlistCardsFor(ctx context.Context, ids []string) []WishlistCard {
	views := c.lookupAll(ctx, ids)

	cards := make([]WishlistCard, 0, len(ids))
	for i, v := range views {
		if v.Outcome != OutcomeFound {
			continue
		}
		p := v.Product
		cards = append(cards, WishlistCard{
			ProductID:     ids[i],
			Name:          p.Name,
			Image:         c.AssetURL(p.ProductAvatar),
			OfferedPrice:  p.OfferedPrice,
			OriginalPrice: p.OriginalPrice,
			InStock:       p.InStock(),
		})
	}
	return cards
}

// CartAdder is the cart mutator MoveToCart uses.
type CartAdder interface {
	AddToCart(ctx context.Context, productID string, price float64) (domain.Cart, error)
}

// MoveToCart looks up id and adds one unit to the cart at the current
// offered price. The product stays on the wishlist.
func (c *Catalog) MoveToCart(ctx context.Context, id string, cart CartAdder) (domain.Cart, error) {
	v := c.Lookup(ctx, id)
	switch v.Outcome {
	case OutcomeNotFound:
		return domain.Cart{}, apperrors.NotFound("product", id)
	case OutcomeError:
		return domain.Cart{}, apperrors.Unavailable("product lookup failed: "+v.Message, nil)
	}
	return cart.AddToCart(ctx, id, v.Product.OfferedPrice)
}
