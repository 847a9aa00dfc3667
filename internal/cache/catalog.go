package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tably/promo-engine/internal/domain/promotion"
)

var _ promotion.Repository = (*CatalogCache)(nil)

// CatalogCache wraps a promotion.Repository and caches each tenant's active
// catalog. Cache failures fall through to the inner repository. Staleness is
// bounded by the TTL; the engine re-checks activation windows on every
// calculation, so a stale entry only delays newly published promotions and
// never resurrects expired ones.
type CatalogCache struct {
	inner promotion.Repository
	cache Cache
	ttl   time.Duration
}

func NewCatalogCache(inner promotion.Repository, c Cache, ttl time.Duration) *CatalogCache {
	return &CatalogCache{inner: inner, cache: c, ttl: ttl}
}

func catalogKey(tenantID string) string {
	return "promo:catalog:" + tenantID
}

func (c *CatalogCache) ListActive(ctx context.Context, tenantID string, asOf time.Time) ([]promotion.Promotion, error) {
	key := catalogKey(tenantID)

	if raw, err := c.cache.Get(ctx, key); err == nil {
		var promos []promotion.Promotion
		if err := json.Unmarshal(raw, &promos); err == nil {
			return promos, nil
		}
		// Unreadable entry, drop it and fall through.
		_ = c.cache.Delete(ctx, key)
	} else if !errors.Is(err, ErrNotFound) {
		zctx.From(ctx).Warn("Catalog cache read failed",
			zap.String("tenant_id", tenantID), zap.Error(err))
	}

	promos, err := c.inner.ListActive(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(promos); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			zctx.From(ctx).Warn("Catalog cache write failed",
				zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	return promos, nil
}

func (c *CatalogCache) FindByCode(ctx context.Context, tenantID, code string) (*promotion.Promotion, error) {
	return c.inner.FindByCode(ctx, tenantID, code)
}

func (c *CatalogCache) CustomerUsageCount(ctx context.Context, promotionID, customerID, tenantID string) (int, error) {
	return c.inner.CustomerUsageCount(ctx, promotionID, customerID, tenantID)
}

// RecordUsage writes through and invalidates the tenant's cached catalog so
// usage counters in the next read are fresh.
func (c *CatalogCache) RecordUsage(ctx context.Context, u promotion.Usage) error {
	if err := c.inner.RecordUsage(ctx, u); err != nil {
		return err
	}
	if err := c.cache.Delete(ctx, catalogKey(u.TenantID)); err != nil {
		zctx.From(ctx).Warn("Catalog cache invalidation failed",
			zap.String("tenant_id", u.TenantID), zap.Error(err))
	}
	return nil
}
