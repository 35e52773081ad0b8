package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Cart.Add Tests
// ============================================================================

func TestAdd_NewProductOnEmptyCart(t *testing.T) {
	c, line := Cart{}.Add("p1", 100)

	require.Len(t, c.Items, 1)
	assert.Equal(t, LineItem{ProductID: "p1", Quantity: 1, OfferedPrice: 100}, c.Items[0])
	assert.Equal(t, c.Items[0], line)
}

func TestAdd_ExistingProductKeepsPrice(t *testing.T) {
	c := Cart{Items: []LineItem{{ProductID: "p1", Quantity: 1, OfferedPrice: 100}}}

	c, line := c.Add("p1", 80)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 100.0, line.OfferedPrice)
}

func TestAdd_ExistingZeroPriceTakesNewPrice(t *testing.T) {
	c := Cart{Items: []LineItem{{ProductID: "p1", Quantity: 3}}}

	c, line := c.Add("p1", 45.5)

	assert.Equal(t, 4, line.Quantity)
	assert.Equal(t, 45.5, c.Items[0].OfferedPrice)
}

func TestAdd_AppendsInOrder(t *testing.T) {
	c, _ := Cart{}.Add("p1", 1)
	c, _ = c.Add("p2", 2)
	c, _ = c.Add("p1", 1)

	require.Len(t, c.Items, 2)
	assert.Equal(t, "p1", c.Items[0].ProductID)
	assert.Equal(t, "p2", c.Items[1].ProductID)
}

func TestAdd_DoesNotMutateReceiver(t *testing.T) {
	orig := Cart{Items: []LineItem{{ProductID: "p1", Quantity: 1, OfferedPrice: 10}}}

	_, _ = orig.Add("p1", 10)

	assert.Equal(t, 1, orig.Items[0].Quantity)
}

// ============================================================================
// Cart.Remove / SetQuantity Tests
// ============================================================================

func TestRemove_MissingIDIsNoop(t *testing.T) {
	c := Cart{Items: []LineItem{{ProductID: "p1", Quantity: 2, OfferedPrice: 10}}}

	out, removed := c.Remove("nope")

	assert.False(t, removed)
	assert.True(t, c.Equal(out))
}

func TestRemove_FiltersLine(t *testing.T) {
	c := Cart{Items: []LineItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
	}}

	out, removed := c.Remove("p1")

	assert.True(t, removed)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "p2", out.Items[0].ProductID)
}

func TestSetQuantity(t *testing.T) {
	base := Cart{Items: []LineItem{{ProductID: "p1", Quantity: 2, OfferedPrice: 10}}}

	tests := []struct {
		name      string
		productID string
		quantity  int
		wantItems int
		wantFound bool
	}{
		{"overwrite", "p1", 5, 1, true},
		{"zero removes", "p1", 0, 0, true},
		{"negative removes", "p1", -3, 0, true},
		{"missing id", "p9", 4, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, found := base.SetQuantity(tt.productID, tt.quantity)
			assert.Equal(t, tt.wantFound, found)
			assert.Len(t, out.Items, tt.wantItems)
		})
	}

	out, line, _ := base.SetQuantity("p1", 5)
	assert.Equal(t, 5, out.Items[0].Quantity)
	assert.Equal(t, 10.0, line.OfferedPrice)
}

func TestCart_ExampleSequence(t *testing.T) {
	c := Cart{}
	c, _ = c.Add("p1", 100)
	assert.True(t, c.Equal(Cart{Items: []LineItem{{ProductID: "p1", Quantity: 1, OfferedPrice: 100}}}))

	c, _ = c.Add("p1", 100)
	assert.True(t, c.Equal(Cart{Items: []LineItem{{ProductID: "p1", Quantity: 2, OfferedPrice: 100}}}))

	c, _, _ = c.SetQuantity("p1", 0)
	assert.Empty(t, c.Items)
}

// ============================================================================
// Totals, equality and wire format
// ============================================================================

func TestSubtotalAndItemCount(t *testing.T) {
	c := Cart{Items: []LineItem{
		{ProductID: "p1", Quantity: 3, OfferedPrice: 0.1},
		{ProductID: "p2", Quantity: 2, OfferedPrice: 19.99},
	}}

	assert.True(t, decimal.RequireFromString("40.28").Equal(c.Subtotal()))
	assert.Equal(t, 5, c.ItemCount())
}

func TestEqual_IgnoresStatus(t *testing.T) {
	a := Cart{Items: []LineItem{{ProductID: "p1", Quantity: 1, OfferedPrice: 5, Status: StatusPending}}}
	b := a.WithStatus(StatusCommitted)

	assert.True(t, a.Equal(b))
	assert.Equal(t, StatusPending, a.Items[0].Status)
	assert.False(t, a.Equal(Cart{}))
}

func TestNewCart_DropsInvalidLines(t *testing.T) {
	c := NewCart([]LineItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "", Quantity: 1},
		{ProductID: "p2", Quantity: 0},
		{ProductID: "p1", Quantity: 7},
	})

	require.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestLineItem_WireFormat(t *testing.T) {
	data, err := json.Marshal(LineItem{ProductID: "p1", Quantity: 2, OfferedPrice: 9.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"productid":"p1","quantity":2,"offeredPrice":9.5}`, string(data))
}

func TestDeltas_WireFormat(t *testing.T) {
	add, err := json.Marshal(AddDelta(LineItem{ProductID: "p1", Quantity: 2, OfferedPrice: 100}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"productid":"p1","quantity":2,"offeredPrice":100}`, string(add))

	upd, err := json.Marshal(QuantityDelta("p1", 4))
	require.NoError(t, err)
	assert.JSONEq(t, `{"productid":"p1","quantity":4}`, string(upd))

	rm, err := json.Marshal(RemoveDelta("p1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"productid":"p1","quantity":0}`, string(rm))
}
