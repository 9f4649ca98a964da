// Package rbac decides whether a principal may call a URL with a method,
// based on the active grants of the principal's groups.
package rbac

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"urlguard/internal/logging"
	"urlguard/internal/metrics"
	"urlguard/internal/urlnorm"
)

// GrantQuerier is the read side of the permission store.
type GrantQuerier interface {
	QueryActiveGrant(ctx context.Context, groupIDs []int64, url, method string) (bool, error)
}

// Checker is the decision engine. Superusers bypass grant checks here and
// nowhere else. Cache is optional. Use it through a pointer.
type Checker struct {
	Store      GrantQuerier
	Normalizer urlnorm.Normalizer
	Cache      DecisionCache

	// cacheStale is set when an invalidation failed. Until one succeeds the
	// cache may hold decisions for revoked grants and is not consulted.
	cacheStale atomic.Bool
}

// IsPermitted reports whether p may call url with method. A store failure
// is returned as an error and never as an answer.
func (c *Checker) IsPermitted(ctx context.Context, p Principal, url, method string) (bool, error) {
	start := time.Now()
	path := c.Normalizer.Normalize(url, p.Locale)

	if p.IsSuperuser {
		metrics.RecordDecision(true, "superuser", false, time.Since(start))
		return true, nil
	}

	method = strings.ToUpper(method)
	key := Key(p.GroupIDs, path, method)

	useCache := c.Cache != nil && len(p.GroupIDs) > 0 && c.cacheUsable(ctx)
	var cached Lookup
	if useCache {
		var err error
		cached, err = c.Cache.Get(ctx, key)
		switch {
		case err != nil:
			useCache = false
			logging.Ctx(ctx).Warn().Err(err).Msg("decision cache read failed")
		case cached.Found:
			metrics.CacheHitsTotal.Inc()
			metrics.RecordDecision(cached.Allowed, "cache", true, time.Since(start))
			return cached.Allowed, nil
		default:
			metrics.CacheMissesTotal.Inc()
		}
	}

	allowed, err := c.Store.QueryActiveGrant(ctx, p.GroupIDs, path, method)
	if err != nil {
		metrics.StoreErrorsTotal.Inc()
		return false, fmt.Errorf("rbac: check %s %s: %w", method, path, err)
	}

	if useCache {
		if err := c.Cache.Set(ctx, key, cached.Generation, allowed); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("decision cache write failed")
		}
	}

	reason := "no_grant"
	if allowed {
		reason = "grant"
	}
	metrics.RecordDecision(allowed, reason, false, time.Since(start))
	return allowed, nil
}

// Invalidate drops cached decisions. Call it after grants change. When the
// cache cannot be invalidated it is bypassed until a later attempt works.
func (c *Checker) Invalidate(ctx context.Context) {
	if c.Cache == nil {
		return
	}
	metrics.CacheInvalidationsTotal.Inc()
	if err := c.Cache.Invalidate(ctx); err != nil {
		c.cacheStale.Store(true)
		logging.Ctx(ctx).Error().Err(err).Msg("decision cache invalidation failed, bypassing cache")
		return
	}
	c.cacheStale.Store(false)
}

// cacheUsable retries a pending invalidation and reports whether the cache
// can be trusted.
func (c *Checker) cacheUsable(ctx context.Context) bool {
	if !c.cacheStale.Load() {
		return true
	}
	if err := c.Cache.Invalidate(ctx); err != nil {
		metrics.CacheBypassesTotal.Inc()
		return false
	}
	c.cacheStale.Store(false)
	logging.Ctx(ctx).Info().Msg("decision cache invalidated after earlier failure")
	return true
}

// Key builds the cache key of a decision: sorted group ids, url, method.
func Key(groupIDs []int64, url, method string) string {
	ids := append([]int64(nil), groupIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteByte('|')
	b.WriteString(url)
	b.WriteByte('|')
	b.WriteString(strings.ToUpper(method))
	return b.String()
}
