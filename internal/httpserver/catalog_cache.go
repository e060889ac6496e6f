package httpserver

import (
	"context"
	"sync"
	"time"

	"github.com/addispay/wallet-server/internal/cacheutil"
	"github.com/addispay/wallet-server/internal/ledger"
)

// catalogCacheTTL bounds staleness on the gift/coin-package catalogs, which
// change rarely (an admin adding a gift or package) but are read on every
// storefront load.
const catalogCacheTTL = 30 * time.Second

// catalogCache read-through-caches the two catalog listings behind a shared
// lock, grounded on cacheutil.ReadThrough's double-checked-locking pattern.
type catalogCache struct {
	mu       sync.RWMutex
	gifts    cacheutil.CachedValue[[]ledger.Gift]
	packages cacheutil.CachedValue[[]ledger.CoinPackage]
}

func newCatalogCache() *catalogCache {
	return &catalogCache{}
}

func (c *catalogCache) Gifts(ctx context.Context, fetch func(context.Context) ([]ledger.Gift, error)) ([]ledger.Gift, error) {
	return cacheutil.ReadThrough(
		&c.mu,
		func(now time.Time) ([]ledger.Gift, bool) {
			if c.gifts.Value != nil && now.Sub(c.gifts.FetchedAt) < catalogCacheTTL {
				return c.gifts.Value, true
			}
			return nil, false
		},
		func(now time.Time) ([]ledger.Gift, error) {
			v, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			c.gifts = cacheutil.CachedValue[[]ledger.Gift]{Value: v, FetchedAt: now}
			return v, nil
		},
	)
}

func (c *catalogCache) Packages(ctx context.Context, fetch func(context.Context) ([]ledger.CoinPackage, error)) ([]ledger.CoinPackage, error) {
	return cacheutil.ReadThrough(
		&c.mu,
		func(now time.Time) ([]ledger.CoinPackage, bool) {
			if c.packages.Value != nil && now.Sub(c.packages.FetchedAt) < catalogCacheTTL {
				return c.packages.Value, true
			}
			return nil, false
		},
		func(now time.Time) ([]ledger.CoinPackage, error) {
			v, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			c.packages = cacheutil.CachedValue[[]ledger.CoinPackage]{Value: v, FetchedAt: now}
			return v, nil
		},
	)
}
