package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
)

// WishlistHandler handles HTTP requests for wishlist endpoints.
type WishlistHandler struct {
	wishlist *catalog.Wishlist
	catalog  *catalog.Catalog
	cart     *cart.Service
	logger   *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(w *catalog.Wishlist, cat *catalog.Catalog, cartSvc *cart.Service, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{wishlist: w, catalog: cat, cart: cartSvc, logger: logger}
}

type wishlistResponse struct {
	ProductIDs []string                                 `json:"productIds"`
	Cards      *pagination.Result[catalog.WishlistCard] `json:"cards,omitempty"`
}

// GetWishlist handles GET /api/v1/wishlist. One page of ids (?page,
// ?per_page) is resolved into cards unless ?cards=false is given. Ids that
// no longer resolve are left out of the page, so a page may hold fewer
// cards than per_page.
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	ids := h.wishlist.IDs()
	resp := wishlistResponse{ProductIDs: ids}
	if r.URL.Query().Get("cards") != "false" {
		params := pagination.FromRequest(r)
		cards := h.catalog.WishlistCardsFor(r.Context(), pagination.Slice(ids, params))
		page := pagination.NewResult(cards, len(ids), params)
		resp.Cards = &page
	}
	httputil.WriteData(w, http.StatusOK, resp)
}

// AddItem handles PUT /api/v1/wishlist/{productId}
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.RequireParam(w, "productId", chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	ids, err := h.wishlist.Add(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, wishlistResponse{ProductIDs: ids})
}

// RemoveItem handles DELETE /api/v1/wishlist/{productId}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.RequireParam(w, "productId", chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	ids, err := h.wishlist.Remove(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, wishlistResponse{ProductIDs: ids})
}

// MoveToCart handles POST /api/v1/wishlist/{productId}/cart
func (h *WishlistHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.RequireParam(w, "productId", chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	c, err := h.catalog.MoveToCart(r.Context(), id, h.cart)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, toCartResponse(c))
}
