// Package app wires the store, the services and the optional resolver cache from a loaded config.
package app

import (
	"context"
	"fmt"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/cache"
	"github.com/ougirez/areametrics/internal/pkg/config"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/store"
	"github.com/ougirez/areametrics/internal/pkg/store/xpgx"
	"github.com/ougirez/areametrics/internal/pkg/store/xsql"
	"github.com/ougirez/areametrics/internal/service/acceleration"
	"github.com/ougirez/areametrics/internal/service/aggregation"
	"github.com/ougirez/areametrics/internal/service/catalog"
	"github.com/ougirez/areametrics/internal/service/lookup"
	"github.com/ougirez/areametrics/internal/service/resolver"
)

const resolverCachePrefix = "areametrics:"

type App struct {
	Config       *config.Config
	Store        store.Store
	Catalog      *catalog.Service
	Acceleration *acceleration.Service
	Lookup       *lookup.Service

	closers []func()
}

// OpenPool connects to the database selected by cfg.Driver.
func OpenPool(ctx context.Context, cfg config.DBConfig) (store.Pool, error) {
	switch cfg.Driver {
	case xpgx.DriverName:
		return xpgx.New(ctx, xpgx.Config{
			DSN:            cfg.DSN,
			MaxConns:       cfg.MaxConns,
			QueryTimeout:   cfg.QueryTimeout,
			ConnectRetries: cfg.ConnectRetries,
		})
	case xsql.DriverName:
		return xsql.New(ctx, xsql.Config{
			Path:         cfg.DSN,
			QueryTimeout: cfg.QueryTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// OpenStore returns a store over a fresh pool. The caller owns the returned close func.
func OpenStore(ctx context.Context, cfg config.DBConfig) (store.Store, func(), error) {
	dialect, err := store.DialectFor(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}

	pool, err := OpenPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	return store.NewStore(pool, dialect), pool.Close, nil
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, closePool, err := OpenStore(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Store: st, closers: []func(){closePool}}

	var res resolver.Resolver = resolver.NewResolverService(st, resolver.Config{
		SingleCountryFallback: cfg.Resolver.SingleCountryFallback,
		Aliases:               cfg.Resolver.Aliases,
	})
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
			Prefix:   resolverCachePrefix,
		})
		if err != nil {
			logger.Warnf(ctx, "resolver cache disabled: %s", err.Error())
		} else {
			res = resolver.WithCache(res, redisCache)
			a.closers = append(a.closers, func() { _ = redisCache.Close() })
		}
	}

	a.Catalog = catalog.NewCatalogService(st)
	a.Acceleration = acceleration.NewAccelerationService(st, acceleration.Config{
		Concurrent: cfg.Snapshot.Concurrent,
		Timeout:    cfg.Snapshot.Timeout,
		StateTTL:   cfg.Snapshot.StateTTL,
	})
	agg := aggregation.NewAggregationService(st, a.Acceleration, aggregation.Config{
		SumCodes:    cfg.Aggregation.SumCodes,
		AvgCodes:    cfg.Aggregation.AvgCodes,
		DefaultKind: domain.AggregationKind(cfg.Aggregation.DefaultKind),
		Fanout:      cfg.Aggregation.Fanout,
	})
	a.Lookup = lookup.NewLookupService(lookup.Deps{
		Locations:    st,
		Catalog:      a.Catalog,
		Resolver:     res,
		Aggregation:  agg,
		Acceleration: a.Acceleration,
	}, cfg.DB.CallTimeout)

	return a, nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
