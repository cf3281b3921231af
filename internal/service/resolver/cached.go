package resolver

import (
	"context"
	"strings"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/metrics"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type cachedResolver struct {
	inner Resolver
	cache Cache
}

// WithCache remembers successful resolutions. Misses are never cached, so rows created later
// become resolvable immediately. Neither is the single-country fallback when inner reports its
// rules, since a second country must turn that reference into a miss. Cache faults are logged
// and the inner resolver is used.
func WithCache(inner Resolver, cache Cache) Resolver {
	return &cachedResolver{inner: inner, cache: cache}
}

func cacheKey(level domain.Level, ref string) string {
	return "resolve:" + string(level) + ":" + strings.ToLower(strings.TrimSpace(ref))
}

func (r *cachedResolver) Resolve(ctx context.Context, level domain.Level, ref string) (string, bool, error) {
	key := cacheKey(level, ref)

	id, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		logger.Warnf(ctx, "resolver cache get %s: %s", key, err.Error())
	} else if ok {
		metrics.ResolverCacheHitsTotal.Inc()
		return id, true, nil
	}
	metrics.ResolverCacheMissesTotal.Inc()

	id, rule, found, err := r.resolveInner(ctx, level, ref)
	if err != nil || !found {
		return id, found, err
	}
	if rule == RuleSingleCountry {
		return id, true, nil
	}

	if err = r.cache.Set(ctx, key, id); err != nil {
		logger.Warnf(ctx, "resolver cache set %s: %s", key, err.Error())
	}

	return id, true, nil
}

func (r *cachedResolver) resolveInner(ctx context.Context, level domain.Level, ref string) (string, string, bool, error) {
	if rr, ok := r.inner.(RuleResolver); ok {
		return rr.ResolveRule(ctx, level, ref)
	}
	id, found, err := r.inner.Resolve(ctx, level, ref)
	return id, "", found, err
}
