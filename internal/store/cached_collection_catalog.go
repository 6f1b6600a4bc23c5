package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/papyrusdb/controlplane/internal/model"
	"go.uber.org/zap"
)

// CachedCollectionCatalog fronts a CollectionCatalog with the catalog cache.
// Collection rows are immutable apart from drops, so short-TTL caching is
// safe; placement metadata is never cached here. Misses and lookup failures
// are not cached.
type CachedCollectionCatalog struct {
	inner  CollectionCatalog
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedCollectionCatalog creates a caching front for collection lookups
func NewCachedCollectionCatalog(inner CollectionCatalog, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedCollectionCatalog {
	return &CachedCollectionCatalog{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// LookupByName resolves a collection, serving repeat lookups from cache
func (c *CachedCollectionCatalog) LookupByName(ctx context.Context, database, name string) (*model.Collection, error) {
	key := fmt.Sprintf("collection:name:%s.%s", database, name)
	if coll, ok := c.cached(ctx, key); ok {
		return coll, nil
	}

	coll, err := c.inner.LookupByName(ctx, database, name)
	if err != nil {
		return nil, err
	}
	c.populate(ctx, key, coll)
	return coll, nil
}

// LookupByID resolves a collection by id, serving repeat lookups from cache
func (c *CachedCollectionCatalog) LookupByID(ctx context.Context, collectionID uint64) (*model.Collection, error) {
	key := fmt.Sprintf("collection:id:%d", collectionID)
	if coll, ok := c.cached(ctx, key); ok {
		return coll, nil
	}

	coll, err := c.inner.LookupByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	c.populate(ctx, key, coll)
	return coll, nil
}

func (c *CachedCollectionCatalog) cached(ctx context.Context, key string) (*model.Collection, bool) {
	value, err := c.cache.Get(ctx, key)
	if err != nil {
		if err != ErrNotFound {
			c.logger.Debug("Collection cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	// The cache round-trips values through JSON, so the hit comes back as a
	// generic document.
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	var coll model.Collection
	if err := json.Unmarshal(raw, &coll); err != nil || coll.CollectionID == 0 {
		return nil, false
	}
	return &coll, true
}

func (c *CachedCollectionCatalog) populate(ctx context.Context, key string, coll *model.Collection) {
	if err := c.cache.Set(ctx, key, coll, c.ttl); err != nil {
		c.logger.Debug("Collection cache write failed", zap.String("key", key), zap.Error(err))
	}
}
