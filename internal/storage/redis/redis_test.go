package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := New(client, "storefront:", ttl)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestStore_Get_Success(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	require.NoError(t, mr.Set("storefront:cart", `[{"productid":"p1","quantity":1}]`))

	got, err := s.Get(context.Background(), "cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"productid":"p1","quantity":1}]`, string(got))
}

func TestStore_Get_NotFound(t *testing.T) {
	s, _ := setupTestRedis(t, 0)

	got, err := s.Get(context.Background(), "cart")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_Get_ConnectionError(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	mr.Close()

	_, err := s.Get(context.Background(), "cart")
	require.Error(t, err)
	assert.False(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "redis get cart")
}

// ---------------------------------------------------------------------------
// Set / Delete
// ---------------------------------------------------------------------------

func TestStore_Set_WritesPrefixedKeyWithTTL(t *testing.T) {
	s, mr := setupTestRedis(t, 24*time.Hour)

	require.NoError(t, s.Set(context.Background(), "authToken", []byte("tok-1")))

	raw, err := mr.Get("storefront:authToken")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", raw)
	assert.Equal(t, 24*time.Hour, mr.TTL("storefront:authToken"))

	mr.FastForward(25 * time.Hour)
	assert.False(t, mr.Exists("storefront:authToken"))
}

func TestStore_Set_NoTTL(t *testing.T) {
	s, mr := setupTestRedis(t, 0)

	require.NoError(t, s.Set(context.Background(), "wishlist", []byte(`[]`)))
	assert.Equal(t, time.Duration(0), mr.TTL("storefront:wishlist"))
}

func TestStore_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	tabA := New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "storefront:", 0)
	tabB := New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "storefront:", 0)
	defer tabA.Close()
	defer tabB.Close()

	require.NoError(t, tabA.Set(ctx, "cart", []byte(`["a"]`)))
	require.NoError(t, tabB.Set(ctx, "cart", []byte(`["b"]`)))

	got, err := tabA.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `["b"]`, string(got))
}

func TestStore_Delete(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	require.NoError(t, mr.Set("storefront:cart", "[]"))

	require.NoError(t, s.Delete(context.Background(), "cart"))
	assert.False(t, mr.Exists("storefront:cart"))
	assert.NoError(t, s.Ping(context.Background()))
}
