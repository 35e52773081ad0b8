// Package shopapi is a typed client for the shop backend REST API.
package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "shop-api"

// Backend paths.
const (
	PathProducts      = "/products/"
	PathGetCart       = "/user/get-cart"
	PathUpdateCart    = "/user/update-cart"
	PathCreateProduct = "/product/create"
)

// HTTPDoer executes requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
	Get(ctx context.Context, url string) (*http.Response, error)
	Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)
	SetHeader(key, value string)
	Header(key string) string
}

// Client talks to the shop backend.
type Client struct {
	baseURL string
	http    HTTPDoer
	logger  *slog.Logger
}

// New creates a client rooted at baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, doer HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		logger:  logger,
	}
}

// BaseURL returns the backend root, used to resolve relative asset paths.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAuthToken attaches "Authorization: Bearer <token>" to every request.
// An empty token removes the header.
func (c *Client) SetAuthToken(token string) {
	if token == "" {
		c.http.SetHeader("Authorization", "")
		return
	}
	c.http.SetHeader("Authorization", "Bearer "+token)
}

// HasAuthToken reports whether an Authorization header is attached.
func (c *Client) HasAuthToken() bool {
	return c.http.Header("Authorization") != ""
}

// productBody accepts the Mongo-style "_id" some backends return instead of "id".
type productBody struct {
	domain.Product
	MongoID string `json:"_id"`
}

// GetProduct fetches one product. A 404 or a null body yields a NotFound error.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	resp, err := c.http.Get(ctx, c.baseURL+PathProducts+url.PathEscape(id))
	if err != nil {
		return nil, httpclient.ClassifyError(err, serviceName)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	var body *productBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode product response: %w", err)
	}
	if body == nil {
		return nil, apperrors.NotFound("product", id)
	}
	p := body.Product
	if p.ID == "" {
		p.ID = body.MongoID
	}
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

type cartEnvelope struct {
	Cart []domain.LineItem `json:"cart"`
}

// GetCart fetches the authoritative server cart. A missing or null "cart"
// field yields an empty cart.
func (c *Client) GetCart(ctx context.Context) (domain.Cart, error) {
	resp, err := c.http.Get(ctx, c.baseURL+PathGetCart)
	if err != nil {
		return domain.Cart{}, httpclient.ClassifyError(err, serviceName)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Cart{}, httpclient.ParseResponseError(resp, serviceName)
	}

	var env cartEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.Cart{}, fmt.Errorf("decode get-cart response: %w", err)
	}
	return domain.NewCart(env.Cart), nil
}

type updateCartRequest struct {
	Cart []domain.CartDelta `json:"cart"`
}

// UpdateCart pushes a single-line delta. Each call carries a fresh
// Idempotency-Key so transport retries cannot apply the delta twice.
func (c *Client) UpdateCart(ctx context.Context, delta domain.CartDelta) error {
	body, err := json.Marshal(updateCartRequest{Cart: []domain.CartDelta{delta}})
	if err != nil {
		return fmt.Errorf("marshal update-cart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathUpdateCart, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create update-cart request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpclient.IdempotencyKeyHeader, uuid.NewString())

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return httpclient.ClassifyError(err, serviceName)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.DebugContext(ctx, "cart delta pushed",
		slog.String("product_id", delta.ProductID),
		slog.Int("quantity", delta.Quantity),
	)
	return nil
}

// CreateResult is what the backend answers to a product upload.
type CreateResult struct {
	ProductID string
	Message   string
}

// CreateProduct uploads draft as multipart/form-data. Only 200 and 201 count
// as success; any other status surfaces the backend's message.
func (c *Client) CreateProduct(ctx context.Context, draft domain.ProductDraft) (*CreateResult, error) {
	body, contentType, err := encodeDraft(draft)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Post(ctx, c.baseURL+PathCreateProduct, contentType, bytes.NewReader(body))
	if err != nil {
		return nil, httpclient.ClassifyError(err, serviceName)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	var out struct {
		Message string `json:"message"`
		ID      string `json:"id"`
		MongoID string `json:"_id"`
		Product *struct {
			ID      string `json:"id"`
			MongoID string `json:"_id"`
		} `json:"product"`
	}
	// The success body is informational; an empty or non-JSON body is fine.
	_ = json.NewDecoder(resp.Body).Decode(&out)

	result := &CreateResult{Message: out.Message}
	switch {
	case out.ID != "":
		result.ProductID = out.ID
	case out.MongoID != "":
		result.ProductID = out.MongoID
	case out.Product != nil && out.Product.ID != "":
		result.ProductID = out.Product.ID
	case out.Product != nil:
		result.ProductID = out.Product.MongoID
	}
	return result, nil
}

// Ping checks that the backend answers. Any non-5xx response counts as
// reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+PathProducts, http.NoBody)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return httpclient.ClassifyError(err, serviceName)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return apperrors.Unavailable(fmt.Sprintf("%s returned %d", serviceName, resp.StatusCode), nil)
	}
	return nil
}
