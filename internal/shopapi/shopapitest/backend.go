// Package shopapitest provides an in-process fake of the shop backend. It
// keeps one authoritative cart per bearer token and can be told to fail
// requests, which makes it useful both in tests and as a local dev backend.
package shopapitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
)

// Request is a recorded call to the fake.
type Request struct {
	Method         string
	Path           string
	Authorization  string
	IdempotencyKey string
	Body           []byte
}

// Backend is an http.Handler implementing the shop backend endpoints.
type Backend struct {
	mu            sync.Mutex
	products      map[string]domain.Product
	carts         map[string][]domain.LineItem
	seenKeys      map[string]struct{}
	failures      map[string][]int
	requests      []Request
	uploads       []Upload
	nullOnMissing bool

	router chi.Router
}

// Upload is a product create call as the fake received it.
type Upload struct {
	Fields map[string]string
	Files  map[string][]string
}

// New returns an empty backend.
func New() *Backend {
	b := &Backend{
		products: make(map[string]domain.Product),
		carts:    make(map[string][]domain.LineItem),
		seenKeys: make(map[string]struct{}),
		failures: make(map[string][]int),
	}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Use(b.injectFailures)
	r.Head("/products/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/products/{id}", b.getProduct)
	r.Get("/user/get-cart", b.getCart)
	r.Post("/user/update-cart", b.updateCart)
	r.Post("/product/create", b.createProduct)
	b.router = r
	return b
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// Server is a running fake backend.
type Server struct {
	*Backend
	*httptest.Server
}

// NewServer starts the fake on a loopback port. URL is the API base URL.
func NewServer() *Server {
	b := New()
	return &Server{Backend: b, Server: httptest.NewServer(b)}
}

// AddProduct seeds a product.
func (b *Backend) AddProduct(p domain.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.products[p.ID] = p
}

// ReturnNullForMissing makes unknown product ids answer 200 with a null body
// instead of 404.
func (b *Backend) ReturnNullForMissing(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nullOnMissing = v
}

// SetCart replaces the server cart for token.
func (b *Backend) SetCart(token string, items []domain.LineItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carts[token] = append([]domain.LineItem(nil), items...)
}

// Cart returns the server cart for token.
func (b *Backend) Cart(token string) []domain.LineItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.LineItem(nil), b.carts[token]...)
}

// FailNext makes the next len(statuses) requests to path answer with those
// statuses, in order.
func (b *Backend) FailNext(path string, statuses ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = append(b.failures[path], statuses...)
}

// Requests returns every request received so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// RequestsTo returns the requests received for path.
func (b *Backend) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Uploads returns the product create calls received so far.
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body, _ = io.ReadAll(io.LimitReader(r.Body, 1<<20))
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:         r.Method,
			Path:           r.URL.Path,
			Authorization:  r.Header.Get("Authorization"),
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
			Body:           body,
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		queue := b.failures[r.URL.Path]
		status := 0
		if len(queue) > 0 {
			status, b.failures[r.URL.Path] = queue[0], queue[1:]
		}
		b.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"message": fmt.Sprintf("injected failure %d", status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	p, ok := b.products[id]
	nullOnMissing := b.nullOnMissing
	b.mu.Unlock()

	switch {
	case ok:
		writeJSON(w, http.StatusOK, p)
	case nullOnMissing:
		writeJSON(w, http.StatusOK, nil)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
	}
}

func (b *Backend) getCart(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized"})
		return
	}
	items := b.Cart(token)
	if items == nil {
		items = []domain.LineItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": items})
}

func (b *Backend) updateCart(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized"})
		return
	}

	var req struct {
		Cart []domain.CartDelta `json:"cart"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if key := r.Header.Get("Idempotency-Key"); key != "" {
		if _, dup := b.seenKeys[key]; dup {
			writeJSON(w, http.StatusOK, map[string]any{"cart": b.carts[token]})
			return
		}
		b.seenKeys[key] = struct{}{}
	}

	cart := domain.Cart{Items: b.carts[token]}
	for _, d := range req.Cart {
		if d.ProductID == "" {
			continue
		}
		if d.Quantity <= 0 {
			cart, _ = cart.Remove(d.ProductID)
			continue
		}
		if i := cart.Find(d.ProductID); i >= 0 {
			cart.Items[i].Quantity = d.Quantity
			if d.OfferedPrice != nil && cart.Items[i].OfferedPrice == 0 {
				cart.Items[i].OfferedPrice = *d.OfferedPrice
			}
			continue
		}
		line := domain.LineItem{ProductID: d.ProductID, Quantity: d.Quantity}
		if d.OfferedPrice != nil {
			line.OfferedPrice = *d.OfferedPrice
		}
		cart.Items = append(cart.Items, line)
	}
	b.carts[token] = cart.Items
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart.Items})
}

func (b *Backend) createProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := bearer(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized"})
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid multipart form"})
		return
	}

	up := Upload{Fields: make(map[string]string), Files: make(map[string][]string)}
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			up.Fields[k] = v[0]
		}
	}
	for k, files := range r.MultipartForm.File {
		for _, fh := range files {
			up.Files[k] = append(up.Files[k], fh.Filename)
		}
	}

	if up.Fields["name"] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Product name is required"})
		return
	}

	stock, _ := strconv.Atoi(up.Fields["stock"])
	offered, _ := strconv.ParseFloat(up.Fields["offeredPrice"], 64)
	original, _ := strconv.ParseFloat(up.Fields["originalPrice"], 64)
	p := domain.Product{
		ID:            uuid.NewString(),
		Name:          up.Fields["name"],
		Description:   up.Fields["description"],
		Category:      up.Fields["category"],
		Stock:         stock,
		OfferedPrice:  offered,
		OriginalPrice: original,
		Features:      domain.SplitFeatures(up.Fields["features"]),
	}
	if avatars := up.Files["productAvatar"]; len(avatars) > 0 {
		p.ProductAvatar = "/uploads/" + avatars[0]
	}
	for _, name := range up.Files["images"] {
		p.Images = append(p.Images, "/uploads/"+name)
	}

	b.mu.Lock()
	b.uploads = append(b.uploads, up)
	b.products[p.ID] = p
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Product created",
		"product": map[string]string{"_id": p.ID},
	})
}

func bearer(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token, ok && token != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
