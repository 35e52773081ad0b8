package catalog

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// Detail is the product page view model.
type Detail struct {
	View
	MainImage   string   `json:"mainImage,omitempty"`
	Gallery     []string `json:"gallery,omitempty"`
	Discount    string   `json:"discountPercent,omitempty"`
	Rating      string   `json:"rating,omitempty"`
	ReviewCount int      `json:"reviewCount"`
	InStock     bool     `json:"inStock"`
	Publisher   string   `json:"publisher,omitempty"`
	Features    []string `json:"features,omitempty"`
}

// ProductDetail looks up id and derives the page fields. The main image is
// the avatar, with the gallery listing the avatar first.
func (c *Catalog) ProductDetail(ctx context.Context, id string) Detail {
	d := Detail{View: c.Lookup(ctx, id)}
	if d.Outcome != OutcomeFound {
		return d
	}
	p := d.Product

	d.MainImage = c.AssetURL(p.ProductAvatar)
	if d.MainImage != "" {
		d.Gallery = append(d.Gallery, d.MainImage)
	}
	for _, img := range p.Images {
		if u := c.AssetURL(img); u != "" && u != d.MainImage {
			d.Gallery = append(d.Gallery, u)
		}
	}
	d.Discount = p.Discount().String()
	d.Rating = p.Rating().String()
	d.ReviewCount = len(p.Reviews)
	d.InStock = p.InStock()
	d.Publisher = p.Publisher()
	d.Features = append([]string(nil), p.Features...)
	return d
}

// CartCard is one line of the cart drawer.
type CartCard struct {
	Line     domain.LineItem `json:"line"`
	Resolved bool            `json:"resolved"`
	Name     string          `json:"name,omitempty"`
	Image    string          `json:"image,omitempty"`
	// UnitPrice is the product's current offered price; Total is UnitPrice × quantity.
	UnitPrice float64 `json:"unitPrice,omitempty"`
	Total     string  `json:"total,omitempty"`
	// CanDecrement is false at quantity 1; the line is removed instead.
	CanDecrement bool `json:"canDecrement"`
	Editable     bool `json:"editable"`
}

// CartCards resolves every line of cart. Lines whose product cannot be
// fetched are kept with Resolved false and are never editable; resolved
// lines are editable when loggedIn.
func (c *Catalog) CartCards(ctx context.Context, cart domain.Cart, loggedIn bool) []CartCard {
	ids := make([]string, len(cart.Items))
	for i, it := range cart.Items {
		ids[i] = it.ProductID
	}
	views := c.lookupAll(ctx, ids)

	cards := make([]CartCard, len(cart.Items))
	for i, it := range cart.Items {
		card := CartCard{
			Line:         it,
			CanDecrement: it.Quantity > 1,
		}
		if v := views[i]; v.Outcome == OutcomeFound {
			p := v.Product
			card.Resolved = true
			card.Editable = loggedIn
			card.Name = p.Name
			card.Image = c.AssetURL(p.ProductAvatar)
			card.UnitPrice = p.OfferedPrice
			card.Total = domain.LineItem{Quantity: it.Quantity, OfferedPrice: p.OfferedPrice}.Total().String()
		}
		cards[i] = card
	}
	return cards
}
