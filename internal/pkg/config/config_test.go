package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 5*time.Second, cfg.DB.QueryTimeout)
	assert.True(t, cfg.Resolver.SingleCountryFallback)
	assert.Equal(t, "", cfg.Aggregation.DefaultKind)
	assert.True(t, cfg.Snapshot.Concurrent)
	assert.Equal(t, 30*time.Second, cfg.Snapshot.StateTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AREAMETRICS_DB_DRIVER", "postgres")
	t.Setenv("AREAMETRICS_DB_QUERY_TIMEOUT", "250ms")
	t.Setenv("AREAMETRICS_RESOLVER_SINGLE_COUNTRY_FALLBACK", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.DB.QueryTimeout)
	assert.False(t, cfg.Resolver.SingleCountryFallback)
}

func TestLoadConfigFileAliases(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
aggregation:
  sum_codes: [sales_volume, listings_count]
  default_kind: avg
resolver:
  aliases:
    city:
      JNB: Johannesburg
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"sales_volume", "listings_count"}, cfg.Aggregation.SumCodes)
	assert.Equal(t, "avg", cfg.Aggregation.DefaultKind)
	assert.Equal(t, "Johannesburg", cfg.Resolver.Aliases["city"]["jnb"])
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AREAMETRICS_DB_DRIVER", "mysql")

	_, err := Load("")
	require.Error(t, err)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
