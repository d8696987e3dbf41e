// Package geofeed serves the map markers of approved, located pharmacies.
package geofeed

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"medlocator/m/domain"
)

const cacheKey = "geofeed:pharmacies"

// ErrCacheMiss is returned by a Cache when the key is absent.
var ErrCacheMiss = errors.New("geofeed: cache miss")

// Source reads the current locations from the store.
type Source interface {
	ApprovedLocations(ctx context.Context) ([]domain.PharmacyLocation, error)
}

// Cache stores the encoded feed.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Feed returns pharmacy locations, optionally through a cache.
type Feed struct {
	source Source
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger

	// generation advances on every Invalidate. A read that straddles one does
	// not write its result back. Invalidations from other processes are only
	// bounded by the TTL.
	generation atomic.Uint64
}

// New creates a Feed. cache may be nil.
func New(source Source, cache Cache, ttl time.Duration, logger *zap.Logger) *Feed {
	return &Feed{source: source, cache: cache, ttl: ttl, logger: logger}
}

// Locations returns {name, lat, lng, address} for every pharmacy whose owner
// is approved and whose coordinates are both set. Cache failures fall back to
// the store.
func (f *Feed) Locations(ctx context.Context) ([]domain.PharmacyLocation, error) {
	if f.cache != nil {
		raw, err := f.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			var locs []domain.PharmacyLocation
			if err := json.Unmarshal(raw, &locs); err == nil {
				return locs, nil
			}
			f.logger.Warn("discarding undecodable geo feed cache entry")
		case !errors.Is(err, ErrCacheMiss):
			f.logger.Warn("geo feed cache read failed", zap.Error(err))
		}
	}

	gen := f.generation.Load()
	locs, err := f.source.ApprovedLocations(ctx)
	if err != nil {
		return nil, err
	}

	if f.cache != nil && f.generation.Load() == gen {
		if raw, err := json.Marshal(locs); err == nil {
			if err := f.cache.Set(ctx, cacheKey, raw, f.ttl); err != nil {
				f.logger.Warn("geo feed cache write failed", zap.Error(err))
			}
		}
	}
	return locs, nil
}

// Invalidate drops the cached feed.
func (f *Feed) Invalidate(ctx context.Context) {
	f.generation.Add(1)
	if f.cache == nil {
		return
	}
	if err := f.cache.Delete(ctx, cacheKey); err != nil {
		f.logger.Warn("geo feed cache invalidation failed", zap.Error(err))
	}
}
