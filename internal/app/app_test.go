package app

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/shopapi/shopapitest"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/logger"
)

func testConfig(t *testing.T, backendURL string) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.ShopAPIBaseURL = backendURL
	cfg.StorageBackend = config.StorageMemory
	cfg.ShopAPIMaxRetries = 0
	return cfg
}

func TestNewApp_ServesAPI(t *testing.T) {
	backend := shopapitest.NewServer()
	defer backend.Close()
	backend.AddProduct(domain.Product{ID: "p1", Name: "Lamp", OfferedPrice: 20})

	a, err := NewApp(testConfig(t, backend.URL), logger.Discard())
	require.NoError(t, err)
	defer func() { _ = a.Shutdown() }()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, health.StatusUp, resp.Status)
	assert.Contains(t, resp.Checks, "storage")
	assert.Contains(t, resp.Checks, "shop_api")

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/wishlist/p1/cart", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestNewApp_BackendDownIsDegraded(t *testing.T) {
	backend := shopapitest.NewServer()
	url := backend.URL
	backend.Close()

	a, err := NewApp(testConfig(t, url), logger.Discard())
	require.NoError(t, err)
	defer func() { _ = a.Shutdown() }()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, health.StatusDegraded, resp.Status)
}

func TestNewApp_SQLiteStorage(t *testing.T) {
	backend := shopapitest.NewServer()
	defer backend.Close()
	cfg := testConfig(t, backend.URL)
	cfg.StorageBackend = config.StorageSQLite
	cfg.StoragePath = filepath.Join(t.TempDir(), "storefront.db")

	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items",
		strings.NewReader(`{"productid":"p1","offeredPrice":3}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, a.Shutdown())

	// The cart survives a restart.
	a, err = NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	defer func() { _ = a.Shutdown() }()

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart/", http.NoBody))
	assert.Contains(t, rec.Body.String(), `"productid":"p1"`)
}

func TestServe_StopsOnCancel(t *testing.T) {
	backend := shopapitest.NewServer()
	defer backend.Close()
	a, err := NewApp(testConfig(t, backend.URL), logger.Discard())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health/live")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestServe_ShutdownEndsEventStreams(t *testing.T) {
	backend := shopapitest.NewServer()
	defer backend.Close()
	a, err := NewApp(testConfig(t, backend.URL), logger.Discard())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/api/v1/cart/events")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	first, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, first, "snapshot")

	start := time.Now()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return while a stream was open")
	}
	assert.Less(t, time.Since(start), 5*time.Second)

	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
}

func TestNewApp_CartEventsForwarding(t *testing.T) {
	backend := shopapitest.NewServer()
	defer backend.Close()
	cfg := testConfig(t, backend.URL)
	cfg.CartEventsBrokers = []string{"127.0.0.1:1"}

	a, err := NewApp(cfg, logger.Discard())
	require.NoError(t, err)
	defer func() { _ = a.Shutdown() }()
	require.NotNil(t, a.forwarder)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", http.NoBody))
	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, health.StatusDegraded, resp.Status)
	assert.Equal(t, health.StatusDown, resp.Checks["kafka"].Status)
}
