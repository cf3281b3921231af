package store

import (
	"context"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/store/xdb"
)

type Pool = xdb.Pool

type LocationStore interface {
	FindID(ctx context.Context, level domain.Level, opts FindIDOpts) (string, error)
	CountLocations(ctx context.Context, level domain.Level) (int64, error)
	ListCountries(ctx context.Context) ([]*domain.Country, error)
	ListChildren(ctx context.Context, level domain.Level, parentID string) ([]*domain.Location, error)
	ListAreas(ctx context.Context, limit uint64) ([]*domain.Location, error)
	ListAreaIDsUnder(ctx context.Context, level domain.Level, parentID string) ([]string, error)
	GetAreaDetail(ctx context.Context, areaID string) (*domain.AreaDetail, error)
	SearchAreas(ctx context.Context, term string, limit uint64) ([]*domain.AreaSearchResult, error)

	UpsertCountry(ctx context.Context, country *domain.Country) (string, error)
	UpsertProvince(ctx context.Context, province *domain.Province) (string, error)
	UpsertCity(ctx context.Context, city *domain.City) (string, error)
	UpsertArea(ctx context.Context, area *domain.Area) (string, error)
}

type MetricStore interface {
	ListMetrics(ctx context.Context, opts ListMetricsOpts) ([]*domain.Metric, error)
	GetMetricByCode(ctx context.Context, code string) (*domain.Metric, error)
	UpsertMetric(ctx context.Context, metric *domain.Metric) (*domain.Metric, error)
	InsertMetricValue(ctx context.Context, opts InsertMetricValueOpts) (bool, error)

	LatestMetrics(ctx context.Context, opts LatestMetricsOpts) ([]*domain.LatestMetric, error)
	RecentValues(ctx context.Context, opts RecentValuesOpts) ([]*domain.SeriesPoint, error)
	Series(ctx context.Context, opts SeriesOpts) ([]*domain.CodedSeriesPoint, error)
}

type SnapshotStore interface {
	SnapshotExists(ctx context.Context) (bool, error)
	SnapshotStale(ctx context.Context) (bool, error)
	CreateSnapshot(ctx context.Context, drop bool) error
	RefreshSnapshot(ctx context.Context, concurrent bool) error
	SnapshotLatestMetrics(ctx context.Context, opts LatestMetricsOpts) ([]*domain.LatestMetric, error)
}

type Store interface {
	LocationStore
	MetricStore
	SnapshotStore

	Dialect() Dialect
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	MetricsSchemaReady(ctx context.Context) (bool, error)
}

type store struct {
	pool    Pool
	dialect Dialect
}

func NewStore(pool Pool, dialect Dialect) Store {
	return &store{pool: pool, dialect: dialect}
}

func (s *store) Dialect() Dialect {
	return s.dialect
}

func (s *store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
