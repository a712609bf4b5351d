package quotes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexgate-hq/dexgate/pkg/dex"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

func testRoute() *dex.Route {
	return &dex.Route{Side: models.SideSell}
}

func TestPutAndGet(t *testing.T) {
	cache := NewCache(time.Minute)

	req := models.SwapRequest{Network: "mainnet", BaseToken: "WETH", QuoteToken: "USDC"}
	entry := cache.Put("mainnet", req, testRoute())
	require.NotEmpty(t, entry.ID)

	got, found := cache.Get(entry.ID)
	require.True(t, found)
	assert.Equal(t, "mainnet", got.Network)
	assert.Equal(t, "WETH", got.Request.BaseToken)

	// Distinct quotes get distinct ids.
	other := cache.Put("mainnet", req, testRoute())
	assert.NotEqual(t, entry.ID, other.ID)
}

func TestGetExpired(t *testing.T) {
	cache := NewCache(10 * time.Millisecond)

	entry := cache.Put("mainnet", models.SwapRequest{}, testRoute())
	time.Sleep(20 * time.Millisecond)

	_, found := cache.Get(entry.ID)
	assert.False(t, found, "expired quote must read as missing")
	assert.Equal(t, 0, cache.Len(), "expired entry is dropped on lookup")
}

func TestDeleteConsumes(t *testing.T) {
	cache := NewCache(time.Minute)

	entry := cache.Put("mainnet", models.SwapRequest{}, testRoute())
	cache.Delete(entry.ID)

	_, found := cache.Get(entry.ID)
	assert.False(t, found)
}

func TestPutSweepsExpiredEntries(t *testing.T) {
	cache := NewCache(10 * time.Millisecond)

	cache.Put("mainnet", models.SwapRequest{}, testRoute())
	cache.Put("mainnet", models.SwapRequest{}, testRoute())
	time.Sleep(20 * time.Millisecond)

	cache.Put("mainnet", models.SwapRequest{}, testRoute())
	assert.Equal(t, 1, cache.Len(), "insert sweeps out expired entries")
}

func TestClear(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Put("mainnet", models.SwapRequest{}, testRoute())
	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}
