package seed

import (
	"context"
	"testing"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/store"
	"github.com/ougirez/areametrics/internal/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedCatalog(t *testing.T) {
	st := storetest.NewSQLite(t)
	svc := NewSeedService(st)

	metrics, err := svc.SeedCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, metrics, len(Catalog()))
	assert.Contains(t, metrics, constants.MetricAvgPrice)
	assert.Contains(t, metrics, constants.MetricAvgPriceRetail)

	again, err := svc.SeedCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, metrics[constants.MetricAvgPrice].ID, again[constants.MetricAvgPrice].ID)
}

func TestSeedDemoIsRepeatable(t *testing.T) {
	st := storetest.NewSQLite(t)
	svc := NewSeedService(st)
	ctx := context.Background()

	report, err := svc.SeedDemo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, report.Locations)
	assert.Equal(t, 27, report.Facts)

	report, err = svc.SeedDemo(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Locations)
	assert.Zero(t, report.Facts)

	count, err := st.CountLocations(ctx, domain.LevelArea)
	require.NoError(t, err)
	assert.EqualValues(t, 8, count)

	name := "Sandton"
	sandton, err := st.FindID(ctx, domain.LevelArea, store.FindIDOpts{Name: &name})
	require.NoError(t, err)

	rows, err := st.LatestMetrics(ctx, store.LatestMetricsOpts{
		AreaIDs: []string{sandton},
		Codes:   []string{constants.MetricAvgPrice},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "3250000", rows[0].ValueNumeric.Decimal.String())
	require.NotNil(t, rows[0].Source)
	assert.Equal(t, "seed", *rows[0].Source)
}
