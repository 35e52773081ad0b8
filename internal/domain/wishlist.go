package domain

// Wishlist is an ordered set of product ids.
type Wishlist struct {
	ProductIDs []string `json:"productIds"`
}

// NewWishlist builds a wishlist from ids, dropping blanks and duplicates.
func NewWishlist(ids []string) Wishlist {
	w := Wishlist{ProductIDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		if id != "" && !w.Contains(id) {
			w.ProductIDs = append(w.ProductIDs, id)
		}
	}
	return w
}

// Contains reports whether id is on the wishlist.
func (w Wishlist) Contains(id string) bool {
	for _, existing := range w.ProductIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// Add appends id if it is not already present.
func (w Wishlist) Add(id string) Wishlist {
	if w.Contains(id) {
		return w
	}
	ids := make([]string, len(w.ProductIDs), len(w.ProductIDs)+1)
	copy(ids, w.ProductIDs)
	return Wishlist{ProductIDs: append(ids, id)}
}

// Remove drops id.
func (w Wishlist) Remove(id string) Wishlist {
	ids := make([]string, 0, len(w.ProductIDs))
	for _, existing := range w.ProductIDs {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	return Wishlist{ProductIDs: ids}
}

// Toggle adds id when absent and removes it when present. The boolean is the
// resulting membership.
func (w Wishlist) Toggle(id string) (Wishlist, bool) {
	if w.Contains(id) {
		return w.Remove(id), false
	}
	return w.Add(id), true
}
