package shopapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/shopapi/shopapitest"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

func newTestClient(t *testing.T) (*Client, *shopapitest.Server) {
	t.Helper()
	srv := shopapitest.NewServer()
	t.Cleanup(srv.Close)

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond
	return New(srv.URL+"/", httpclient.New(cfg), logger.Discard()), srv
}

// ---------------------------------------------------------------------------
// GetProduct
// ---------------------------------------------------------------------------

func TestGetProduct_Found(t *testing.T) {
	c, srv := newTestClient(t)
	srv.AddProduct(domain.Product{ID: "p1", Name: "Drone X", OfferedPrice: 450, Features: domain.Features{"4K"}})

	p, err := c.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Drone X", p.Name)
	assert.Equal(t, 450.0, p.OfferedPrice)
	assert.Equal(t, domain.Features{"4K"}, p.Features)
}

func TestGetProduct_NotFound(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.GetProduct(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGetProduct_NullBodyIsNotFound(t *testing.T) {
	c, srv := newTestClient(t)
	srv.ReturnNullForMissing(true)

	_, err := c.GetProduct(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGetProduct_MongoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"_id":"abc","name":"Cam"}`))
	}))
	defer srv.Close()
	c := New(srv.URL, httpclient.New(httpclient.DefaultConfig()), logger.Discard())

	p, err := c.GetProduct(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", p.ID)
}

func TestGetProduct_EmptyID(t *testing.T) {
	c, srv := newTestClient(t)

	_, err := c.GetProduct(context.Background(), " ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, srv.Requests())
}

// ---------------------------------------------------------------------------
// Cart endpoints
// ---------------------------------------------------------------------------

func TestGetCart_RequiresToken(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.GetCart(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGetCart_MissingFieldIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c := New(srv.URL, httpclient.New(httpclient.DefaultConfig()), logger.Discard())

	cart, err := c.GetCart(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestUpdateCart_SendsDeltaWithTokenAndKey(t *testing.T) {
	c, srv := newTestClient(t)
	c.SetAuthToken("tok")

	require.NoError(t, c.UpdateCart(context.Background(), domain.AddDelta(domain.LineItem{ProductID: "p1", Quantity: 1, OfferedPrice: 100})))

	reqs := srv.RequestsTo(PathUpdateCart)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer tok", reqs[0].Authorization)
	assert.NotEmpty(t, reqs[0].IdempotencyKey)
	assert.JSONEq(t, `{"cart":[{"productid":"p1","quantity":1,"offeredPrice":100}]}`, string(reqs[0].Body))

	cart, err := c.GetCart(context.Background())
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestUpdateCart_RetriesKeepTheSameKey(t *testing.T) {
	c, srv := newTestClient(t)
	c.SetAuthToken("tok")
	srv.FailNext(PathUpdateCart, http.StatusServiceUnavailable)

	require.NoError(t, c.UpdateCart(context.Background(), domain.QuantityDelta("p1", 3)))

	reqs := srv.RequestsTo(PathUpdateCart)
	require.Len(t, reqs, 2)
	assert.Equal(t, reqs[0].IdempotencyKey, reqs[1].IdempotencyKey)
	assert.Equal(t, reqs[0].Body, reqs[1].Body)
	assert.Len(t, srv.Cart("tok"), 1)
}

func TestUpdateCart_ClientErrorSurfacesMessage(t *testing.T) {
	c, srv := newTestClient(t)
	c.SetAuthToken("tok")
	srv.FailNext(PathUpdateCart, http.StatusBadRequest)

	err := c.UpdateCart(context.Background(), domain.RemoveDelta("p1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, httpclient.BackendMessage(err), "injected failure 400")
	assert.Len(t, srv.RequestsTo(PathUpdateCart), 1)
}

func TestSetAuthToken_Clears(t *testing.T) {
	c, srv := newTestClient(t)
	c.SetAuthToken("tok")
	assert.True(t, c.HasAuthToken())
	c.SetAuthToken("")
	assert.False(t, c.HasAuthToken())

	_, _ = c.GetCart(context.Background())
	reqs := srv.RequestsTo(PathGetCart)
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Authorization)
}

// ---------------------------------------------------------------------------
// CreateProduct
// ---------------------------------------------------------------------------

func TestCreateProduct_Multipart(t *testing.T) {
	c, srv := newTestClient(t)
	c.SetAuthToken("seller")

	res, err := c.CreateProduct(context.Background(), domain.ProductDraft{
		Name:          "Phantom",
		Category:      domain.CategoryDrones,
		Description:   "Quadcopter",
		Stock:         3,
		OriginalPrice: 1000,
		OfferedPrice:  899.5,
		Features:      "GPS\n4K",
		Avatar:        &domain.FileUpload{Filename: "a.png", ContentType: "image/png", Data: []byte("png")},
		Images: []*domain.FileUpload{
			{Filename: "1.jpg", Data: []byte("j1")},
			{Filename: "2.jpg", Data: []byte("j2")},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ProductID)
	assert.Equal(t, "Product created", res.Message)

	ups := srv.Uploads()
	require.Len(t, ups, 1)
	assert.Equal(t, "Phantom", ups[0].Fields["name"])
	assert.Equal(t, "drones", ups[0].Fields["category"])
	assert.Equal(t, "3", ups[0].Fields["stock"])
	assert.Equal(t, "899.5", ups[0].Fields["offeredPrice"])
	assert.Equal(t, "GPS\n4K", ups[0].Fields["features"])
	assert.Equal(t, []string{"a.png"}, ups[0].Files["productAvatar"])
	assert.Equal(t, []string{"1.jpg", "2.jpg"}, ups[0].Files["images"])

	p, err := c.GetProduct(context.Background(), res.ProductID)
	require.NoError(t, err)
	assert.Equal(t, domain.Features{"GPS", "4K"}, p.Features)
}

func TestCreateProduct_FailureMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Offered price too high"})
	}))
	defer srv.Close()
	c := New(srv.URL, httpclient.New(httpclient.DefaultConfig()), logger.Discard())

	_, err := c.CreateProduct(context.Background(), domain.ProductDraft{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, httpclient.BackendMessage(err), "Offered price too high")
}

func TestPing(t *testing.T) {
	c, srv := newTestClient(t)
	assert.NoError(t, c.Ping(context.Background()))

	srv.Close()
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

// ---------------------------------------------------------------------------
// Circuit breaker transport
// ---------------------------------------------------------------------------

func TestThroughCircuitBreaker(t *testing.T) {
	srv := shopapitest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddProduct(domain.Product{ID: "p1", Name: "Lens", OfferedPrice: 80})

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cb := httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("shop-api-test"), logger.Discard())
	c := New(srv.URL, cb, logger.Discard())
	c.SetAuthToken("seller")
	ctx := context.Background()

	p, err := c.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Lens", p.Name)

	cart, err := c.GetCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	res, err := c.CreateProduct(ctx, domain.ProductDraft{Name: "Tripod", Category: domain.CategoryCameras, OriginalPrice: 30, OfferedPrice: 25})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ProductID)
	require.Len(t, srv.Uploads(), 1)
	assert.Equal(t, "Tripod", srv.Uploads()[0].Fields["name"])
}

func TestGetProduct_ServerErrorThroughBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "maintenance"})
	}))
	defer srv.Close()

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cb := httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("shop-api-test-5xx"), logger.Discard())
	c := New(srv.URL, cb, logger.Discard())

	_, err := c.GetProduct(context.Background(), "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Contains(t, httpclient.BackendMessage(err), "maintenance")
}
