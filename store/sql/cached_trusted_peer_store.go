package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/jshuaaaa/lz-stable-streaming/core"
)

const trustedPeerCacheKeyPrefix = "lz-stable-streaming::trusted_peer::v1"

// CachedTrustedPeerStore fronts a TrustedPeerStore with a read-through
// cache. Upsert writes through and drops the cached entry.
type CachedTrustedPeerStore struct {
	base  core.TrustedPeerStore
	cache repositorycache.CacheService
}

func NewCachedTrustedPeerStore(
	base core.TrustedPeerStore,
	cacheService repositorycache.CacheService,
) (*CachedTrustedPeerStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base trusted peer store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: trusted peer cache service is required")
	}
	return &CachedTrustedPeerStore{base: base, cache: cacheService}, nil
}

// TrustedPeerCacheKey returns lz-stable-streaming::trusted_peer::v1::<domain id>.
func TrustedPeerCacheKey(domainID uint32) string {
	return strings.Join([]string{trustedPeerCacheKeyPrefix, strconv.FormatUint(uint64(domainID), 10)}, "::")
}

func (s *CachedTrustedPeerStore) Get(ctx context.Context, domainID uint32) (core.TrustedPeer, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.TrustedPeer{}, fmt.Errorf("sqlstore: cached trusted peer store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, TrustedPeerCacheKey(domainID), func(ctx context.Context) (core.TrustedPeer, error) {
		return s.base.Get(ctx, domainID)
	})
}

func (s *CachedTrustedPeerStore) Upsert(ctx context.Context, peer core.TrustedPeer) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached trusted peer store is not configured")
	}
	if err := s.base.Upsert(ctx, peer); err != nil {
		return err
	}
	return s.cache.Delete(ctx, TrustedPeerCacheKey(peer.DomainID))
}
