package lookup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/store"
	"github.com/ougirez/areametrics/internal/pkg/store/storetest"
	"github.com/ougirez/areametrics/internal/pkg/store/xsql"
	"github.com/ougirez/areametrics/internal/service/acceleration"
	"github.com/ougirez/areametrics/internal/service/aggregation"
	"github.com/ougirez/areametrics/internal/service/catalog"
	"github.com/ougirez/areametrics/internal/service/resolver"
	"github.com/ougirez/areametrics/internal/service/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(st store.Store, callTimeout time.Duration) *Service {
	accel := acceleration.NewAccelerationService(st, acceleration.Config{Concurrent: true})
	return NewLookupService(Deps{
		Locations:    st,
		Catalog:      catalog.NewCatalogService(st),
		Resolver:     resolver.NewResolverService(st, resolver.Config{SingleCountryFallback: true}),
		Aggregation:  aggregation.NewAggregationService(st, accel, aggregation.Config{}),
		Acceleration: accel,
	}, callTimeout)
}

func newDemoService(t *testing.T) (*Service, store.Store) {
	t.Helper()

	st := storetest.NewSQLite(t)
	_, err := seed.NewSeedService(st).SeedDemo(context.Background())
	require.NoError(t, err)

	return newService(st, 5*time.Second), st
}

func TestEndToEnd(t *testing.T) {
	svc, st := newDemoService(t)
	ctx := context.Background()

	code := "ZA"
	countryID, err := st.FindID(ctx, domain.LevelCountry, store.FindIDOpts{Code: &code})
	require.NoError(t, err)

	id, err := svc.Resolve(ctx, domain.LevelCountry, "ZA")
	require.NoError(t, err)
	assert.Equal(t, countryID, id)

	latest, err := svc.LatestMetrics(ctx, "Sandton", []string{constants.MetricAvgPrice})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "3250000", latest[constants.MetricAvgPrice].ValueNumeric.Decimal.String())

	trend, err := svc.Trend(ctx, "sandton", constants.MetricAvgPrice)
	require.NoError(t, err)
	assert.InDelta(t, 8.33, trend.ChangePct.Decimal.InexactFloat64(), 0.01)

	rollup, err := svc.Rollup(ctx, domain.LevelCity, "JHB", []string{constants.MetricAvgPrice})
	require.NoError(t, err)
	assert.Equal(t, 4, rollup.AreaCount)
	assert.Equal(t, 2, rollup.Metrics[constants.MetricAvgPrice].SampleCount)
	assert.Equal(t, "3250000", rollup.Metrics[constants.MetricAvgPrice].Value.Decimal.String())

	series, err := svc.Series(ctx, "Sandton", constants.MetricRentalYield, aggregation.SeriesRange{})
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "7.2", series[1].ValueNumeric.Decimal.String())
}

func TestNotFound(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	_, err := svc.LatestMetrics(ctx, "Atlantis", nil)
	assert.ErrorIs(t, err, constants.ErrNotFound)

	_, err = svc.Rollup(ctx, domain.LevelProvince, "Mordor", nil)
	assert.ErrorIs(t, err, constants.ErrNotFound)

	_, err = svc.AreaDetail(ctx, "12345")
	assert.ErrorIs(t, err, constants.ErrNotFound)
}

func TestHierarchy(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	countries, err := svc.Countries(ctx)
	require.NoError(t, err)
	require.Len(t, countries, 1)

	cities, err := svc.Children(ctx, domain.LevelCity, "WC")
	require.NoError(t, err)
	require.Len(t, cities, 1)
	assert.Equal(t, "Cape Town", cities[0].Name)

	areas, err := svc.Children(ctx, domain.LevelArea, "CPT")
	require.NoError(t, err)
	assert.Len(t, areas, 4)

	_, err = svc.Children(ctx, domain.LevelCountry, "x")
	assert.ErrorIs(t, err, constants.ErrBadRequest)

	hits, err := svc.SearchAreas(ctx, "point")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Sea Point", hits[0].Name)
}

func TestListAreasAndDetail(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	listing, source, err := svc.ListAreas(ctx, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, acceleration.SourceLive, source)
	require.Len(t, listing, 8)

	byName := map[string]*domain.AreaLatest{}
	for _, a := range listing {
		byName[a.Name] = a
	}
	assert.Equal(t, "7.2", byName["Sandton"].Metrics[constants.MetricRentalYield].Decimal.String())
	assert.Contains(t, byName["Fourways"].Metrics, constants.MetricAvgPrice)
	assert.False(t, byName["Fourways"].Metrics[constants.MetricAvgPrice].Valid)

	listing, _, err = svc.ListAreas(ctx, []string{constants.MetricAvgPrice}, 2)
	require.NoError(t, err)
	assert.Len(t, listing, 2)

	view, err := svc.AreaDetail(ctx, "Sea Point")
	require.NoError(t, err)
	require.NotNil(t, view.CityName)
	assert.Equal(t, "Cape Town", *view.CityName)
	assert.Equal(t, "6.5", view.Metrics[constants.MetricVacancyRate].Decimal.String())

	stats, err := svc.AreaStatistics(ctx, "Sea Point")
	require.NoError(t, err)
	assert.Equal(t, "3250000", stats.AveragePrice.Decimal.String())
	assert.True(t, stats.VacancyTrend.Valid)
}

func TestTypeDistributionAndPriceSeries(t *testing.T) {
	svc, st := newDemoService(t)
	ctx := context.Background()
	f := &storetest.Fixture{AreaIDs: map[string]string{}, Metrics: map[string]*domain.Metric{}}

	name := "Randburg"
	areaID, err := st.FindID(ctx, domain.LevelArea, store.FindIDOpts{Name: &name})
	require.NoError(t, err)
	f.AreaIDs[name] = areaID

	f.Fact(t, st, name, constants.MetricCountResidential, "2025-09-01", "120")
	f.Fact(t, st, name, constants.MetricCountRetail, "2025-09-01", "8")
	f.Fact(t, st, name, constants.MetricAvgPriceResidential, "2016-03-01", "900000")
	f.Fact(t, st, name, constants.MetricAvgPriceResidential, "2024-03-01", "1500000")
	f.Fact(t, st, name, constants.MetricAvgPriceResidential, "2025-03-01", "1600000")

	distribution, err := svc.TypeDistribution(ctx, name)
	require.NoError(t, err)
	require.Len(t, distribution, 2)
	assert.Equal(t, "residential", distribution[0].Type)
	assert.EqualValues(t, 120, distribution[0].Count)
	assert.Equal(t, "retail", distribution[1].Type)

	now := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	prices, err := svc.PriceSeries(ctx, name, 2, now)
	require.NoError(t, err)
	require.Len(t, prices["residential"], 2)
	assert.Equal(t, "2024-03-01", prices["residential"][0].PeriodStart.String())
	assert.Empty(t, prices["commercial"])
}

func TestHealthAndRefreshOnSQLite(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	health, err := svc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", health.Driver)
	assert.True(t, health.Metrics)
	assert.Equal(t, string(acceleration.StateUnsupported), health.Snapshot)

	_, err = svc.Refresh(ctx, acceleration.RefreshOpts{})
	assert.ErrorIs(t, err, constants.ErrSnapshotUnsupported)

	metrics, err := svc.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, metrics, len(seed.Catalog()))
}

func TestMetricsSchemaMissing(t *testing.T) {
	ctx := context.Background()
	pool, err := xsql.New(ctx, xsql.Config{Path: filepath.Join(t.TempDir(), "bare.db")})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	svc := newService(store.NewStore(pool, store.SQLite{}), time.Second)

	_, err = svc.LatestMetrics(ctx, "Sandton", nil)
	assert.ErrorIs(t, err, constants.ErrSchemaUnsupported)

	health, err := svc.Health(ctx)
	require.NoError(t, err)
	assert.False(t, health.Metrics)
}

func TestCallTimeoutMapsToUnavailable(t *testing.T) {
	st := storetest.NewSQLite(t)
	svc := newService(st, time.Nanosecond)

	_, err := svc.Countries(context.Background())
	assert.ErrorIs(t, err, constants.ErrStoreUnavailable)
}

func TestParseCodes(t *testing.T) {
	assert.Equal(t, []string{"avg_price", "rental_yield"}, ParseCodes(" avg_price,,rental_yield,avg_price "))
	assert.Nil(t, ParseCodes(""))
}
