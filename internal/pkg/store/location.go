package store

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
)

// FindIDOpts filters a single-level id lookup. Set filters are ANDed; an empty opts returns the
// lowest id of the level.
type FindIDOpts struct {
	ID     *string
	IDFold *string
	Code   *string
	Name   *string
}

var (
	countryColumns = []string{"id", "name", "code", "created_at"}
	areaColumns    = []string{"a.id", "a.name", "a.city_id", "a.area_type", "a.postal_code", "a.latitude", "a.longitude", "a.created_at"}
)

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *store) FindID(ctx context.Context, level domain.Level, opts FindIDOpts) (string, error) {
	lt, err := tableFor(level)
	if err != nil {
		return "", err
	}

	query := s.builder().Select("id").
		From(lt.table).
		OrderBy("id").
		Limit(1)

	if opts.ID != nil {
		query = query.Where(sq.Eq{"id": *opts.ID})
	}
	if opts.IDFold != nil {
		query = query.Where(sq.Expr("lower(trim(id)) = ?", fold(*opts.IDFold)))
	}
	if opts.Code != nil {
		if !lt.hasCode {
			return "", constants.ErrDBNotFound
		}
		query = query.Where(sq.Expr("lower(trim(code)) = ?", fold(*opts.Code)))
	}
	if opts.Name != nil {
		query = query.Where(sq.Expr("lower(trim(name)) = ?", fold(*opts.Name)))
	}

	var id string
	if err = s.pool.Getx(ctx, &id, query); err != nil {
		return "", wrapErr(err)
	}

	return id, nil
}

func (s *store) CountLocations(ctx context.Context, level domain.Level) (int64, error) {
	lt, err := tableFor(level)
	if err != nil {
		return 0, err
	}

	var count int64
	if err = s.pool.Getx(ctx, &count, s.builder().Select("COUNT(*)").From(lt.table)); err != nil {
		return 0, fmt.Errorf("store.CountLocations: %w", wrapErr(err))
	}

	return count, nil
}

func (s *store) ListCountries(ctx context.Context) ([]*domain.Country, error) {
	query := s.builder().Select(countryColumns...).
		From(tableCountries).
		OrderBy("name")

	selected := []*domain.Country{}
	if err := s.pool.Selectx(ctx, &selected, query); err != nil {
		return nil, fmt.Errorf("store.ListCountries: %w", err)
	}

	return selected, nil
}

// ListChildren lists the rows of level owned by parentID, ordered by name.
func (s *store) ListChildren(ctx context.Context, level domain.Level, parentID string) ([]*domain.Location, error) {
	lt, err := tableFor(level)
	if err != nil {
		return nil, err
	}
	if lt.parentColumn == "" {
		return nil, constants.ErrBadRequest.Withf("level %q has no parent", level)
	}

	query := s.builder().Select("id", "name", lt.parentColumn+" AS parent_id").
		From(lt.table).
		Where(sq.Eq{lt.parentColumn: parentID}).
		OrderBy("name", "id")

	selected := []*domain.Location{}
	if err = s.pool.Selectx(ctx, &selected, query); err != nil {
		return nil, fmt.Errorf("store.ListChildren: %w", err)
	}

	return selected, nil
}

func (s *store) ListAreas(ctx context.Context, limit uint64) ([]*domain.Location, error) {
	query := s.builder().Select("id", "name", "city_id AS parent_id").
		From(tableAreas).
		OrderBy("name", "id").
		Limit(limit)

	selected := []*domain.Location{}
	if err := s.pool.Selectx(ctx, &selected, query); err != nil {
		return nil, fmt.Errorf("store.ListAreas: %w", err)
	}

	return selected, nil
}

// ListAreaIDsUnder returns the ids of every area owned, directly or transitively, by parentID.
func (s *store) ListAreaIDsUnder(ctx context.Context, level domain.Level, parentID string) ([]string, error) {
	query := s.builder().Select("a.id").
		From(tableAreas + " a").
		OrderBy("a.id")

	switch level {
	case domain.LevelCity:
		query = query.Where(sq.Eq{"a.city_id": parentID})
	case domain.LevelProvince:
		query = query.Join(tableCities + " c ON c.id = a.city_id").
			Where(sq.Eq{"c.province_id": parentID})
	case domain.LevelCountry:
		query = query.Join(tableCities + " c ON c.id = a.city_id").
			Join(tableProvinces + " p ON p.id = c.province_id").
			Where(sq.Eq{"p.country_id": parentID})
	default:
		return nil, constants.ErrBadRequest.Withf("cannot list areas under level %q", level)
	}

	var ids []string
	if err := s.pool.Selectx(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("store.ListAreaIDsUnder: %w", err)
	}

	return ids, nil
}

func (s *store) GetAreaDetail(ctx context.Context, areaID string) (*domain.AreaDetail, error) {
	query := s.builder().Select(areaColumns...).
		Columns("c.name AS city_name", "p.name AS province_name", "co.name AS country_name").
		From(tableAreas + " a").
		LeftJoin(tableCities + " c ON c.id = a.city_id").
		LeftJoin(tableProvinces + " p ON p.id = c.province_id").
		LeftJoin(tableCountries + " co ON co.id = p.country_id").
		Where(sq.Eq{"a.id": areaID})

	var selected domain.AreaDetail
	if err := s.pool.Getx(ctx, &selected, query); err != nil {
		return nil, wrapErr(err)
	}

	return &selected, nil
}

// SearchAreas matches term as a case-insensitive substring of the area name or id.
func (s *store) SearchAreas(ctx context.Context, term string, limit uint64) ([]*domain.AreaSearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []*domain.AreaSearchResult{}, nil
	}

	query := s.builder().Select("a.id", "a.name", "a.city_id", "c.name AS city_name", "p.name AS province_name").
		From(tableAreas + " a").
		LeftJoin(tableCities + " c ON c.id = a.city_id").
		LeftJoin(tableProvinces + " p ON p.id = c.province_id").
		Where(sq.Or{
			s.dialect.ContainsFold("a.name", term),
			s.dialect.ContainsFold("a.id", term),
		}).
		OrderBy("a.name", "a.id").
		Limit(limit)

	selected := []*domain.AreaSearchResult{}
	if err := s.pool.Selectx(ctx, &selected, query); err != nil {
		return nil, fmt.Errorf("store.SearchAreas: %w", err)
	}

	return selected, nil
}

func newID(id string) string {
	if strings.TrimSpace(id) == "" {
		return uuid.NewString()
	}
	return id
}

func (s *store) UpsertCountry(ctx context.Context, country *domain.Country) (string, error) {
	id := newID(country.ID)
	query := s.builder().Insert(tableCountries).
		Columns("id", "name", "code").
		Values(id, country.Name, country.Code).
		Suffix(`ON CONFLICT (id) DO UPDATE SET name = excluded.name, code = excluded.code`)

	if _, err := s.pool.Execx(ctx, query); err != nil {
		return "", fmt.Errorf("store.UpsertCountry: %w", err)
	}

	return id, nil
}

func (s *store) UpsertProvince(ctx context.Context, province *domain.Province) (string, error) {
	id := newID(province.ID)
	query := s.builder().Insert(tableProvinces).
		Columns("id", "name", "country_id").
		Values(id, province.Name, province.CountryID).
		Suffix(`ON CONFLICT (id) DO UPDATE SET name = excluded.name, country_id = excluded.country_id`)

	if _, err := s.pool.Execx(ctx, query); err != nil {
		return "", fmt.Errorf("store.UpsertProvince: %w", err)
	}

	return id, nil
}

func (s *store) UpsertCity(ctx context.Context, city *domain.City) (string, error) {
	id := newID(city.ID)
	query := s.builder().Insert(tableCities).
		Columns("id", "name", "province_id").
		Values(id, city.Name, city.ProvinceID).
		Suffix(`ON CONFLICT (id) DO UPDATE SET name = excluded.name, province_id = excluded.province_id`)

	if _, err := s.pool.Execx(ctx, query); err != nil {
		return "", fmt.Errorf("store.UpsertCity: %w", err)
	}

	return id, nil
}

func (s *store) UpsertArea(ctx context.Context, area *domain.Area) (string, error) {
	id := newID(area.ID)
	query := s.builder().Insert(tableAreas).
		Columns("id", "name", "city_id", "area_type", "postal_code", "latitude", "longitude").
		Values(id, area.Name, area.CityID, area.AreaType, area.PostalCode, area.Latitude, area.Longitude).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
	name = excluded.name,
	city_id = excluded.city_id,
	area_type = excluded.area_type,
	postal_code = excluded.postal_code,
	latitude = excluded.latitude,
	longitude = excluded.longitude`)

	if _, err := s.pool.Execx(ctx, query); err != nil {
		return "", fmt.Errorf("store.UpsertArea: %w", err)
	}

	return id, nil
}
