package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/princekumarofficial/catalog-service/internal/storage"
	"github.com/princekumarofficial/catalog-service/internal/types/assets"
)

// CacheService wraps storage with a Redis cache for public listing pages.
// Reads of single records always go to storage, so ownership checks see
// the record of truth.
type CacheService struct {
	storage.Storage
	redis *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

// Cache key patterns
const (
	KeyPrefix      = "catalog:"
	ListVersionKey = "catalog:list:version"
	ListPageKey    = "catalog:list:%d:%s:%s:%s:%d:%d:%q" // version:owner:sort:order:page:limit:search
)

const DefaultListTTL = 45 * time.Second

// NewCacheService creates a new cache service
func NewCacheService(store storage.Storage, redisClient *redis.Client, ttl time.Duration, log *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return &CacheService{
		Storage: store,
		redis:   redisClient,
		ttl:     ttl,
		log:     log,
	}
}

var _ storage.Storage = (*CacheService)(nil)

type cachedPage struct {
	Items []assets.Asset `json:"items"`
	Total int64          `json:"total"`
}

// ListAssets serves public pages from the cache. Listings that include
// unpublished assets are private to one owner and always hit storage.
func (c *CacheService) ListAssets(ctx context.Context, q assets.ListQuery) ([]assets.Asset, int64, error) {
	if q.IncludeUnpublished {
		return c.Storage.ListAssets(ctx, q)
	}

	key, err := c.pageKey(ctx, q)
	if err != nil {
		c.log.Debug("list cache unavailable", zap.Error(err))
		return c.Storage.ListAssets(ctx, q)
	}

	// Try cache first
	cached, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var page cachedPage
		if err := json.Unmarshal(cached, &page); err == nil {
			return page.Items, page.Total, nil
		}
	}

	// Cache miss - fetch from database
	items, total, err := c.Storage.ListAssets(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	data, _ := json.Marshal(cachedPage{Items: items, Total: total})
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Debug("list cache write failed", zap.String("key", key), zap.Error(err))
	}
	return items, total, nil
}

func (c *CacheService) pageKey(ctx context.Context, q assets.ListQuery) (string, error) {
	version, err := c.redis.Get(ctx, ListVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf(ListPageKey, version, q.OwnerID, q.SortBy, q.SortOrder, q.Page, q.Limit, q.Search), nil
}

// InvalidateLists retires every cached listing page by bumping the version
// embedded in page keys. Old pages expire on their own.
func (c *CacheService) InvalidateLists(ctx context.Context) {
	if err := c.redis.Incr(ctx, ListVersionKey).Err(); err != nil {
		c.log.Warn("list cache invalidation failed", zap.Error(err))
	}
}

func (c *CacheService) CreateAsset(ctx context.Context, a *assets.Asset) error {
	if err := c.Storage.CreateAsset(ctx, a); err != nil {
		return err
	}
	c.InvalidateLists(ctx)
	return nil
}

func (c *CacheService) UpdateAsset(ctx context.Context, id string, changes storage.AssetChanges) error {
	if err := c.Storage.UpdateAsset(ctx, id, changes); err != nil {
		return err
	}
	c.InvalidateLists(ctx)
	return nil
}

func (c *CacheService) DeleteAsset(ctx context.Context, id string) error {
	if err := c.Storage.DeleteAsset(ctx, id); err != nil {
		return err
	}
	c.InvalidateLists(ctx)
	return nil
}
