package aggregation

import (
	"context"
	"testing"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/store/storetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, "8.3333", PercentChange(nd("3250000"), nd("3000000")).Decimal.String())
	assert.Equal(t, "-50", PercentChange(nd("5"), nd("10")).Decimal.String())
	assert.False(t, PercentChange(nd("5"), nd("0")).Valid)
	assert.False(t, PercentChange(nd("5"), decimal.NullDecimal{}).Valid)
	assert.False(t, PercentChange(decimal.NullDecimal{}, nd("5")).Valid)
}

func TestTrend(t *testing.T) {
	st := storetest.NewSQLite(t)
	f := storetest.NewFixture(t, st, "Sandton", "Rosebank")
	f.Fact(t, st, "Sandton", constants.MetricAvgPrice, "2025-09-01", "3250000")
	f.Fact(t, st, "Sandton", constants.MetricAvgPrice, "2025-08-01", "3000000")
	f.Fact(t, st, "Rosebank", constants.MetricAvgPrice, "2025-08-01", "2890000")

	svc := NewAggregationService(st, nil, Config{})
	ctx := context.Background()

	trend, err := svc.Trend(ctx, f.AreaIDs["Sandton"], constants.MetricAvgPrice)
	require.NoError(t, err)
	assert.Equal(t, "3250000", trend.Latest.Decimal.String())
	assert.Equal(t, "3000000", trend.Previous.Decimal.String())
	require.True(t, trend.ChangePct.Valid)
	assert.InDelta(t, 8.33, trend.ChangePct.Decimal.InexactFloat64(), 0.01)

	trend, err = svc.Trend(ctx, f.AreaIDs["Rosebank"], constants.MetricAvgPrice)
	require.NoError(t, err)
	assert.True(t, trend.Latest.Valid)
	assert.False(t, trend.Previous.Valid)
	assert.False(t, trend.ChangePct.Valid)

	trend, err = svc.Trend(ctx, f.AreaIDs["Rosebank"], constants.MetricRentalYield)
	require.NoError(t, err)
	assert.False(t, trend.Latest.Valid)
}

func TestLatestMetricsAndValue(t *testing.T) {
	st := storetest.NewSQLite(t)
	f := storetest.NewFixture(t, st, "Sandton", "Empty")
	f.Fact(t, st, "Sandton", constants.MetricAvgPrice, "2025-08-01", "3000000")
	f.Fact(t, st, "Sandton", constants.MetricAvgPrice, "2025-09-01", "3250000")

	svc := NewAggregationService(st, nil, Config{})
	ctx := context.Background()

	latest, err := svc.LatestMetrics(ctx, f.AreaIDs["Sandton"], []string{constants.MetricAvgPrice})
	require.NoError(t, err)
	require.Contains(t, latest, constants.MetricAvgPrice)
	assert.Equal(t, "3250000", latest[constants.MetricAvgPrice].ValueNumeric.Decimal.String())

	latest, err = svc.LatestMetrics(ctx, f.AreaIDs["Empty"], nil)
	require.NoError(t, err)
	assert.Empty(t, latest)

	point, found, err := svc.LatestValue(ctx, f.AreaIDs["Sandton"], constants.MetricAvgPrice)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2025-09-01", point.PeriodStart.String())

	_, found, err = svc.LatestValue(ctx, f.AreaIDs["Empty"], constants.MetricAvgPrice)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMultiSeries(t *testing.T) {
	st := storetest.NewSQLite(t)
	f := storetest.NewFixture(t, st, "Sandton")
	f.Fact(t, st, "Sandton", constants.MetricAvgPrice, "2025-09-01", "3250000")
	f.Fact(t, st, "Sandton", constants.MetricAvgPrice, "2025-08-01", "3000000")

	svc := NewAggregationService(st, nil, Config{})
	ctx := context.Background()

	series, err := svc.MultiSeries(ctx, f.AreaIDs["Sandton"],
		[]string{constants.MetricAvgPrice, constants.MetricVacancyRate}, SeriesRange{})
	require.NoError(t, err)
	require.Len(t, series[constants.MetricAvgPrice], 2)
	assert.Equal(t, "2025-08-01", series[constants.MetricAvgPrice][0].PeriodStart.String())
	assert.NotNil(t, series[constants.MetricVacancyRate])
	assert.Empty(t, series[constants.MetricVacancyRate])

	zero := 0
	_, err = svc.Series(ctx, f.AreaIDs["Sandton"], constants.MetricAvgPrice, SeriesRange{Months: &zero})
	assert.ErrorIs(t, err, constants.ErrBadRequest)

	start, end := domain.NewDate(2025, 9, 1), domain.NewDate(2025, 8, 1)
	_, err = svc.Series(ctx, f.AreaIDs["Sandton"], constants.MetricAvgPrice, SeriesRange{Start: &start, End: &end})
	assert.ErrorIs(t, err, constants.ErrBadRequest)
}

func TestRollup(t *testing.T) {
	st := storetest.NewSQLite(t)
	f := storetest.NewFixture(t, st, "Sandton", "Rosebank", "Fourways")
	f.Fact(t, st, "Sandton", constants.MetricAvgPrice, "2025-08-01", "1")
	f.Fact(t, st, "Sandton", constants.MetricAvgPrice, "2025-09-01", "3250000")
	f.Fact(t, st, "Rosebank", constants.MetricAvgPrice, "2025-09-01", "2890000")
	f.Fact(t, st, "Sandton", constants.MetricSalesVolume, "2025-09-01", "10")
	f.Fact(t, st, "Rosebank", constants.MetricSalesVolume, "2025-09-01", "5")
	f.Fact(t, st, "Fourways", constants.MetricSalesVolume, "2025-06-01", "7")
	f.Metric(t, st, constants.MetricCrimeIndex)

	svc := NewAggregationService(st, nil, Config{Fanout: 2})
	ctx := context.Background()

	rollup, err := svc.Rollup(ctx, domain.LevelCity, f.CityID, []string{
		constants.MetricAvgPrice, constants.MetricSalesVolume, constants.MetricCrimeIndex,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, rollup.AreaCount)

	avg := rollup.Metrics[constants.MetricAvgPrice]
	require.NotNil(t, avg)
	assert.Equal(t, domain.AggregationAvg, avg.Aggregation)
	assert.Equal(t, 2, avg.SampleCount)
	assert.Equal(t, "3070000", avg.Value.Decimal.String())

	sum := rollup.Metrics[constants.MetricSalesVolume]
	require.NotNil(t, sum)
	assert.Equal(t, domain.AggregationSum, sum.Aggregation)
	assert.Equal(t, 3, sum.SampleCount)
	assert.Equal(t, "22", sum.Value.Decimal.String())

	crime := rollup.Metrics[constants.MetricCrimeIndex]
	require.NotNil(t, crime)
	assert.False(t, crime.Value.Valid)
	assert.Zero(t, crime.SampleCount)
	assert.Equal(t, constants.MetricCrimeIndex, crime.Name)

	province, err := svc.Rollup(ctx, domain.LevelProvince, f.ProvinceID, nil)
	require.NoError(t, err)
	assert.Len(t, province.Metrics, 2)
	assert.Equal(t, "22", province.Metrics[constants.MetricSalesVolume].Value.Decimal.String())
}

func TestRollupAmbiguousMetric(t *testing.T) {
	st := storetest.NewSQLite(t)
	f := storetest.NewFixture(t, st, "Sandton", "Rosebank")
	f.Fact(t, st, "Sandton", "listings", "2025-09-01", "4")
	f.Fact(t, st, "Rosebank", "listings", "2025-09-01", "6")
	ctx := context.Background()

	strict := NewAggregationService(st, nil, Config{})
	_, err := strict.Rollup(ctx, domain.LevelCity, f.CityID, []string{"listings"})
	assert.ErrorIs(t, err, constants.ErrAggregationAmbiguous)

	configured := NewAggregationService(st, nil, Config{SumCodes: []string{"listings"}})
	rollup, err := configured.Rollup(ctx, domain.LevelCity, f.CityID, []string{"listings"})
	require.NoError(t, err)
	assert.Equal(t, "10", rollup.Metrics["listings"].Value.Decimal.String())

	lenient := NewAggregationService(st, nil, Config{DefaultKind: domain.AggregationAvg})
	rollup, err = lenient.Rollup(ctx, domain.LevelCity, f.CityID, []string{"listings"})
	require.NoError(t, err)
	assert.Equal(t, "5", rollup.Metrics["listings"].Value.Decimal.String())
}

func TestRollupRejectsAreaLevel(t *testing.T) {
	st := storetest.NewSQLite(t)
	svc := NewAggregationService(st, nil, Config{})

	_, err := svc.Rollup(context.Background(), domain.LevelArea, "x", nil)
	assert.ErrorIs(t, err, constants.ErrBadRequest)
}

func TestRollupEmptyCity(t *testing.T) {
	st := storetest.NewSQLite(t)
	f := storetest.NewFixture(t, st)
	svc := NewAggregationService(st, nil, Config{})

	rollup, err := svc.Rollup(context.Background(), domain.LevelCity, f.CityID, []string{constants.MetricAvgPrice})
	require.NoError(t, err)
	assert.Zero(t, rollup.AreaCount)
	require.Contains(t, rollup.Metrics, constants.MetricAvgPrice)
	assert.False(t, rollup.Metrics[constants.MetricAvgPrice].Value.Valid)
}
