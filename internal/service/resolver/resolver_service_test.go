package resolver

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

type hierarchy struct {
	store    store.Store
	country  string
	province string
	city     string
	digits   string
	area     string
}

func newHierarchy(t *testing.T) *hierarchy {
	t.Helper()

	ctx := context.Background()
	st := storetest.NewSQLite(t)
	h := &hierarchy{store: st}

	code := "ZA"
	var err error
	h.country, err = st.UpsertCountry(ctx, &domain.Country{ID: "1", Name: "South Africa", Code: &code})
	require.NoError(t, err)
	h.province, err = st.UpsertProvince(ctx, &domain.Province{Name: "Gauteng", CountryID: h.country})
	require.NoError(t, err)
	h.city, err = st.UpsertCity(ctx, &domain.City{ID: "JHB_CITY", Name: "Johannesburg", ProvinceID: h.province})
	require.NoError(t, err)
	h.digits, err = st.UpsertCity(ctx, &domain.City{Name: "999", ProvinceID: h.province})
	require.NoError(t, err)
	h.area, err = st.UpsertArea(ctx, &domain.Area{ID: "sandton", Name: "Sandton", CityID: h.city})
	require.NoError(t, err)

	return h
}

func TestResolve(t *testing.T) {
	h := newHierarchy(t)
	svc := NewResolverService(h.store, Config{})

	tests := []struct {
		name  string
		level domain.Level
		ref   string
		want  string
		found bool
	}{
		{name: "numeric id", level: domain.LevelCountry, ref: "1", want: h.country, found: true},
		{name: "numeric id with leading zeros", level: domain.LevelCountry, ref: "001", want: h.country, found: true},
		{name: "country code", level: domain.LevelCountry, ref: "za", want: h.country, found: true},
		{name: "country alias", level: domain.LevelCountry, ref: "RSA", want: h.country, found: true},
		{name: "country name", level: domain.LevelCountry, ref: " south africa ", want: h.country, found: true},
		{name: "province alias", level: domain.LevelProvince, ref: "gp", want: h.province, found: true},
		{name: "city id folded", level: domain.LevelCity, ref: "jhb_city", want: h.city, found: true},
		{name: "city alias", level: domain.LevelCity, ref: "JHB", want: h.city, found: true},
		{name: "area name", level: domain.LevelArea, ref: "SANDTON", want: h.area, found: true},
		{name: "digits never match names", level: domain.LevelCity, ref: "999"},
		{name: "unknown name", level: domain.LevelCity, ref: "Atlantis"},
		{name: "blank", level: domain.LevelArea, ref: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, found, err := svc.Resolve(context.Background(), tt.level, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestResolveUnknownLevel(t *testing.T) {
	h := newHierarchy(t)
	svc := NewResolverService(h.store, Config{})

	_, _, err := svc.Resolve(context.Background(), domain.Level("street"), "x")
	assert.ErrorIs(t, err, constants.ErrBadRequest)
}

func TestResolveSingleCountryFallback(t *testing.T) {
	h := newHierarchy(t)
	ctx := context.Background()

	strict := NewResolverService(h.store, Config{})
	_, found, err := strict.Resolve(ctx, domain.LevelCountry, "Narnia")
	require.NoError(t, err)
	assert.False(t, found)

	lenient := NewResolverService(h.store, Config{SingleCountryFallback: true})
	id, found, err := lenient.Resolve(ctx, domain.LevelCountry, "Narnia")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, h.country, id)

	// the fallback only applies to the country level
	_, found, err = lenient.Resolve(ctx, domain.LevelCity, "Narnia")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = h.store.UpsertCountry(ctx, &domain.Country{Name: "Namibia"})
	require.NoError(t, err)

	_, found, err = lenient.Resolve(ctx, domain.LevelCountry, "Narnia")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolveConfiguredAliases(t *testing.T) {
	h := newHierarchy(t)
	svc := NewResolverService(h.store, Config{
		Aliases: map[string]map[string]string{
			"areas":  {"snd": "Sandton"},
			"planet": {"x": "y"},
		},
	})

	id, found, err := svc.Resolve(context.Background(), domain.LevelArea, "SND")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, h.area, id)
}
