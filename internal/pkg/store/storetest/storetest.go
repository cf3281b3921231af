// Package storetest opens throwaway SQLite stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/store"
	"github.com/ougirez/areametrics/internal/pkg/store/xsql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// NewSQLite returns a migrated store backed by a file in t.TempDir.
func NewSQLite(t *testing.T) store.Store {
	t.Helper()

	ctx := context.Background()
	pool, err := xsql.New(ctx, xsql.Config{
		Path:         filepath.Join(t.TempDir(), "areametrics.db"),
		QueryTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	st := store.NewStore(pool, store.SQLite{})
	require.NoError(t, st.Migrate(ctx))

	return st
}

// Fixture is a small hierarchy: one country with one province, one city and the given areas.
type Fixture struct {
	CountryID  string
	ProvinceID string
	CityID     string
	AreaIDs    map[string]string
	Metrics    map[string]*domain.Metric
}

func NewFixture(t *testing.T, st store.Store, areas ...string) *Fixture {
	t.Helper()

	ctx := context.Background()
	code := "ZA"
	f := &Fixture{AreaIDs: make(map[string]string), Metrics: make(map[string]*domain.Metric)}

	var err error
	f.CountryID, err = st.UpsertCountry(ctx, &domain.Country{Name: "South Africa", Code: &code})
	require.NoError(t, err)
	f.ProvinceID, err = st.UpsertProvince(ctx, &domain.Province{Name: "Gauteng", CountryID: f.CountryID})
	require.NoError(t, err)
	f.CityID, err = st.UpsertCity(ctx, &domain.City{Name: "Johannesburg", ProvinceID: f.ProvinceID})
	require.NoError(t, err)

	for _, name := range areas {
		f.AreaIDs[name], err = st.UpsertArea(ctx, &domain.Area{Name: name, CityID: f.CityID})
		require.NoError(t, err)
	}

	return f
}

// Metric upserts a numeric metric and remembers it by code.
func (f *Fixture) Metric(t *testing.T, st store.Store, code string) *domain.Metric {
	t.Helper()

	if m, ok := f.Metrics[code]; ok {
		return m
	}
	m, err := st.UpsertMetric(context.Background(), &domain.Metric{
		Code:     code,
		Name:     code,
		DataType: domain.DataTypeNumeric,
		IsActive: true,
	})
	require.NoError(t, err)
	f.Metrics[code] = m
	return m
}

// Fact records a numeric fact for the named area. period is YYYY-MM-DD.
func (f *Fixture) Fact(t *testing.T, st store.Store, area, code, period, value string) bool {
	t.Helper()

	date, err := domain.ParseDate(period)
	require.NoError(t, err)

	inserted, err := st.InsertMetricValue(context.Background(), store.InsertMetricValueOpts{
		AreaID:       f.AreaIDs[area],
		MetricID:     f.Metric(t, st, code).ID,
		PeriodStart:  date,
		ValueNumeric: decimal.NewNullDecimal(decimal.RequireFromString(value)),
	})
	require.NoError(t, err)
	return inserted
}
