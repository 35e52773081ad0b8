package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWishlist_AddIsIdempotent(t *testing.T) {
	w := Wishlist{}.Add("p1").Add("p2").Add("p1")

	assert.Equal(t, []string{"p1", "p2"}, w.ProductIDs)
}

func TestWishlist_ToggleAndRemove(t *testing.T) {
	w, on := Wishlist{}.Toggle("p1")
	assert.True(t, on)
	assert.True(t, w.Contains("p1"))

	w, on = w.Toggle("p1")
	assert.False(t, on)
	assert.False(t, w.Contains("p1"))

	assert.Empty(t, w.Remove("missing").ProductIDs)
}

func TestNewWishlist_Dedupes(t *testing.T) {
	w := NewWishlist([]string{"a", "", "b", "a"})
	assert.Equal(t, []string{"a", "b"}, w.ProductIDs)
}
