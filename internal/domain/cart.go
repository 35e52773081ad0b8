package domain

import (
	"github.com/shopspring/decimal"
)

// LineStatus tracks where a line item stands relative to the server copy.
type LineStatus string

const (
	// StatusCommitted means the server has acknowledged the line. Lines loaded
	// from the server or from storage without a status are treated as committed.
	StatusCommitted LineStatus = "committed"
	// StatusPending marks an optimistic local change whose push is in flight.
	StatusPending LineStatus = "pending"
	// StatusFailed marks an optimistic local change the server rejected or
	// never received.
	StatusFailed LineStatus = "failed"
)

// LineItem is one product-quantity-price tuple within a cart. The JSON field
// names match what the shop backend and the storage snapshot use.
type LineItem struct {
	ProductID    string     `json:"productid"`
	Quantity     int        `json:"quantity"`
	OfferedPrice float64    `json:"offeredPrice"`
	Status       LineStatus `json:"status,omitempty"`
}

// Total returns price × quantity.
func (li LineItem) Total() decimal.Decimal {
	return decimal.NewFromFloat(li.OfferedPrice).Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is an ordered collection of line items, unique by product id.
type Cart struct {
	Items []LineItem `json:"items"`
}

// NewCart builds a cart from items, dropping lines with an empty id or a
// non-positive quantity and keeping the first line for duplicated ids.
func NewCart(items []LineItem) Cart {
	c := Cart{Items: make([]LineItem, 0, len(items))}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			continue
		}
		if _, dup := seen[it.ProductID]; dup {
			continue
		}
		seen[it.ProductID] = struct{}{}
		c.Items = append(c.Items, it)
	}
	return c
}

// Find returns the index of productID, or -1.
func (c Cart) Find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Get returns the line for productID.
func (c Cart) Get(productID string) (LineItem, bool) {
	if i := c.Find(productID); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// Clone returns a deep copy.
func (c Cart) Clone() Cart {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// ItemCount returns the total number of units in the cart.
func (c Cart) ItemCount() int {
	var n int
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Subtotal sums price × quantity over all lines.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Total())
	}
	return total
}

// Equal compares product ids, quantities and prices in order. Status is ignored.
func (c Cart) Equal(other Cart) bool {
	if len(c.Items) != len(other.Items) {
		return false
	}
	for i := range c.Items {
		a, b := c.Items[i], other.Items[i]
		if a.ProductID != b.ProductID || a.Quantity != b.Quantity || a.OfferedPrice != b.OfferedPrice {
			return false
		}
	}
	return true
}

// WithStatus returns a copy with every line set to status.
func (c Cart) WithStatus(status LineStatus) Cart {
	out := c.Clone()
	for i := range out.Items {
		out.Items[i].Status = status
	}
	return out
}

// Add increments the quantity of an existing line, keeping its price unless
// that price is zero, or appends a new line at quantity 1. It returns the new
// cart and the changed line.
func (c Cart) Add(productID string, price float64) (Cart, LineItem) {
	out := c.Clone()
	if i := out.Find(productID); i >= 0 {
		line := out.Items[i]
		line.Quantity++
		if line.OfferedPrice == 0 {
			line.OfferedPrice = price
		}
		out.Items[i] = line
		return out, line
	}
	line := LineItem{ProductID: productID, Quantity: 1, OfferedPrice: price}
	out.Items = append(out.Items, line)
	return out, line
}

// Remove filters productID out. The boolean reports whether a line was removed.
func (c Cart) Remove(productID string) (Cart, bool) {
	out := Cart{Items: make([]LineItem, 0, len(c.Items))}
	removed := false
	for _, it := range c.Items {
		if it.ProductID == productID {
			removed = true
			continue
		}
		out.Items = append(out.Items, it)
	}
	return out, removed
}

// SetQuantity overwrites the quantity of productID. A quantity of zero or less
// removes the line. The boolean reports whether the line existed.
func (c Cart) SetQuantity(productID string, quantity int) (Cart, LineItem, bool) {
	if quantity <= 0 {
		out, removed := c.Remove(productID)
		return out, LineItem{ProductID: productID}, removed
	}
	out := c.Clone()
	i := out.Find(productID)
	if i < 0 {
		return out, LineItem{}, false
	}
	out.Items[i].Quantity = quantity
	return out, out.Items[i], true
}

// CartDelta is the single-line change pushed to the server. Quantity zero
// removes the line. The price is only sent when a line is added.
type CartDelta struct {
	ProductID    string   `json:"productid"`
	Quantity     int      `json:"quantity"`
	OfferedPrice *float64 `json:"offeredPrice,omitempty"`
}

// AddDelta describes line after an add.
func AddDelta(line LineItem) CartDelta {
	price := line.OfferedPrice
	return CartDelta{ProductID: line.ProductID, Quantity: line.Quantity, OfferedPrice: &price}
}

// QuantityDelta describes a quantity overwrite.
func QuantityDelta(productID string, quantity int) CartDelta {
	return CartDelta{ProductID: productID, Quantity: quantity}
}

// RemoveDelta describes a removal.
func RemoveDelta(productID string) CartDelta {
	return CartDelta{ProductID: productID, Quantity: 0}
}
