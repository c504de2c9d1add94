/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL  = time.Hour
	DefaultCacheSize = 64

	// DefaultBuildTimeout bounds one build regardless of who is waiting on it.
	DefaultBuildTimeout = 10 * time.Minute
)

// Key identifies a cached index. The description is hashed so the key stays
// small and identical issue text always maps to the same entry.
type Key struct {
	Owner           string
	Repo            string
	DescriptionHash string
}

func (k Key) String() string {
	return k.Owner + "/" + k.Repo + ":" + k.DescriptionHash
}

// KeyFor returns the cache key for an issue description in a repository.
func KeyFor(owner, repo, description string) Key {
	sum := sha256.Sum256([]byte(description))
	return Key{Owner: owner, Repo: repo, DescriptionHash: hex.EncodeToString(sum[:])}
}

// IndexBuilder builds a RepoIndex. *Builder implements it.
type IndexBuilder interface {
	Build(ctx context.Context, owner, repo, ref, description string) (*RepoIndex, error)
}

var _ IndexBuilder = (*Builder)(nil)

// Cache holds built indexes with TTL and capacity eviction. At most one
// build per key is in flight; concurrent callers for that key share it, and
// a caller giving up does not cancel it. Failed builds are not cached.
type Cache struct {
	builder      IndexBuilder
	entries      *ttlcache.Cache[Key, *RepoIndex]
	group        singleflight.Group
	buildTimeout time.Duration
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithBuildTimeout bounds each build. Non-positive values are ignored.
func WithBuildTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.buildTimeout = d
		}
	}
}

// NewCache creates a Cache. Call Close to stop the expiry loop.
func NewCache(builder IndexBuilder, ttl time.Duration, capacity uint64, opts ...CacheOption) *Cache {
	entries := ttlcache.New(
		ttlcache.WithTTL[Key, *RepoIndex](ttl),
		ttlcache.WithCapacity[Key, *RepoIndex](capacity),
		ttlcache.WithDisableTouchOnHit[Key, *RepoIndex](),
	)
	entries.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[Key, *RepoIndex]) {
		evictionCounter.WithLabelValues(evictionReason(reason)).Inc()
	})
	go entries.Start()
	c := &Cache{builder: builder, entries: entries, buildTimeout: DefaultBuildTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops the expiry loop.
func (c *Cache) Close() {
	c.entries.Stop()
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int { return c.entries.Len() }

// Get returns the index for the description, building it on a miss.
func (c *Cache) Get(ctx context.Context, owner, repo, ref, description string) (*RepoIndex, error) {
	key := KeyFor(owner, repo, description)
	log := clog.FromContext(ctx).With("cache_key", key.String())

	if item := c.entries.Get(key); item != nil {
		lookupCounter.WithLabelValues("hit").Inc()
		log.Debug("Index cache hit")
		return item.Value(), nil
	}
	lookupCounter.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(key.String(), func() (any, error) {
		// A build that finished between our lookup and joining the group
		// has already been stored.
		if item := c.entries.Get(key); item != nil {
			return item.Value(), nil
		}
		// The build outlives the caller that started it; others may be waiting.
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.buildTimeout)
		defer cancel()
		start := time.Now()
		ix, err := c.builder.Build(buildCtx, owner, repo, ref, description)
		buildSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		c.entries.Set(key, ix, ttlcache.DefaultTTL)
		return ix, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug("Joined in-flight index build")
		}
		return res.Val.(*RepoIndex), nil
	}
}

func evictionReason(r ttlcache.EvictionReason) string {
	switch r {
	case ttlcache.EvictionReasonExpired:
		return "expired"
	case ttlcache.EvictionReasonCapacityReached:
		return "capacity"
	default:
		return "deleted"
	}
}
