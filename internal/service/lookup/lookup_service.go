// Package lookup is the resolved-lookup API: every call accepts references in any form the resolver
// understands, is bounded by one overall timeout and checks that the metric schema exists.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/store"
	"github.com/ougirez/areametrics/internal/service/acceleration"
	"github.com/ougirez/areametrics/internal/service/aggregation"
	"github.com/ougirez/areametrics/internal/service/catalog"
	"github.com/ougirez/areametrics/internal/service/resolver"
	"github.com/shopspring/decimal"
)

const (
	ServiceName = "areametrics"

	DefaultListLimit = 50
	MaxListLimit     = 200
	SearchLimit      = 20
)

type LocationStore interface {
	ListCountries(ctx context.Context) ([]*domain.Country, error)
	ListChildren(ctx context.Context, level domain.Level, parentID string) ([]*domain.Location, error)
	ListAreas(ctx context.Context, limit uint64) ([]*domain.Location, error)
	GetAreaDetail(ctx context.Context, areaID string) (*domain.AreaDetail, error)
	SearchAreas(ctx context.Context, term string, limit uint64) ([]*domain.AreaSearchResult, error)
}

type Deps struct {
	Locations    LocationStore
	Catalog      *catalog.Service
	Resolver     resolver.Resolver
	Aggregation  *aggregation.Service
	Acceleration *acceleration.Service
}

type Service struct {
	locations    LocationStore
	catalog      *catalog.Service
	resolver     resolver.Resolver
	aggregation  *aggregation.Service
	acceleration *acceleration.Service
	callTimeout  time.Duration
}

func NewLookupService(deps Deps, callTimeout time.Duration) *Service {
	return &Service{
		locations:    deps.Locations,
		catalog:      deps.Catalog,
		resolver:     deps.Resolver,
		aggregation:  deps.Aggregation,
		acceleration: deps.Acceleration,
		callTimeout:  callTimeout,
	}
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

// classify turns an exhausted call deadline into ErrStoreUnavailable.
func classify(err error) error {
	if err == nil || errors.Is(err, constants.ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return constants.ErrStoreUnavailable.Wrap(err)
	}
	return err
}

func (s *Service) resolve(ctx context.Context, level domain.Level, ref string) (string, error) {
	id, found, err := s.resolver.Resolve(ctx, level, ref)
	if err != nil {
		return "", fmt.Errorf("resolver.Resolve: %w", err)
	}
	if !found {
		return "", constants.ErrNotFound.Withf("%s %q", level, ref)
	}
	return id, nil
}

func (s *Service) Resolve(ctx context.Context, level domain.Level, ref string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	id, err := s.resolve(ctx, level, ref)
	return id, classify(err)
}

// resolveMetricArea checks the metric schema and resolves an area reference.
func (s *Service) resolveMetricArea(ctx context.Context, areaRef string) (string, error) {
	if err := s.catalog.RequireMetrics(ctx); err != nil {
		return "", err
	}
	return s.resolve(ctx, domain.LevelArea, areaRef)
}

func (s *Service) LatestMetrics(ctx context.Context, areaRef string, codes []string) (map[string]*domain.LatestMetric, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	areaID, err := s.resolveMetricArea(ctx, areaRef)
	if err != nil {
		return nil, classify(err)
	}

	latest, err := s.aggregation.LatestMetrics(ctx, areaID, codes)
	return latest, classify(err)
}

func (s *Service) Series(ctx context.Context, areaRef, code string, rng aggregation.SeriesRange) ([]*domain.SeriesPoint, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	areaID, err := s.resolveMetricArea(ctx, areaRef)
	if err != nil {
		return nil, classify(err)
	}

	series, err := s.aggregation.Series(ctx, areaID, code, rng)
	return series, classify(err)
}

func (s *Service) Trend(ctx context.Context, areaRef, code string) (*domain.Trend, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	areaID, err := s.resolveMetricArea(ctx, areaRef)
	if err != nil {
		return nil, classify(err)
	}

	trend, err := s.aggregation.Trend(ctx, areaID, code)
	return trend, classify(err)
}

func (s *Service) Rollup(ctx context.Context, level domain.Level, parentRef string, codes []string) (*domain.Rollup, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.catalog.RequireMetrics(ctx); err != nil {
		return nil, classify(err)
	}
	parentID, err := s.resolve(ctx, level, parentRef)
	if err != nil {
		return nil, classify(err)
	}

	rollup, err := s.aggregation.Rollup(ctx, level, parentID, codes)
	return rollup, classify(err)
}

// Refresh is not bounded by the call timeout; the acceleration layer applies its own.
func (s *Service) Refresh(ctx context.Context, opts acceleration.RefreshOpts) (*domain.RefreshResult, error) {
	if err := s.catalog.RequireMetrics(ctx); err != nil {
		return nil, classify(err)
	}

	result, err := s.acceleration.Refresh(ctx, opts)
	return result, classify(err)
}

func (s *Service) Health(ctx context.Context) (*domain.Health, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	supported, err := s.catalog.MetricsSupported(ctx)
	if err != nil {
		return nil, classify(err)
	}

	state, err := s.acceleration.State(ctx)
	if err != nil {
		return nil, classify(err)
	}

	return &domain.Health{
		Service:  ServiceName,
		Driver:   s.catalog.Driver(),
		Metrics:  supported,
		Snapshot: string(state),
	}, nil
}

func (s *Service) Catalog(ctx context.Context) ([]*domain.Metric, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	metrics, err := s.catalog.ListMetrics(ctx, false)
	return metrics, classify(err)
}

func (s *Service) Countries(ctx context.Context) ([]*domain.Country, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	countries, err := s.locations.ListCountries(ctx)
	return countries, classify(err)
}

// Children lists the rows of level under the resolved parent reference.
func (s *Service) Children(ctx context.Context, level domain.Level, parentRef string) ([]*domain.Location, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	parentLevel, ok := level.Parent()
	if !ok {
		return nil, constants.ErrBadRequest.Withf("level %q has no parent", level)
	}
	parentID, err := s.resolve(ctx, parentLevel, parentRef)
	if err != nil {
		return nil, classify(err)
	}

	children, err := s.locations.ListChildren(ctx, level, parentID)
	return children, classify(err)
}

func (s *Service) SearchAreas(ctx context.Context, term string) ([]*domain.AreaSearchResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	results, err := s.locations.SearchAreas(ctx, term, SearchLimit)
	return results, classify(err)
}

// ListAreas lists areas with their latest numeric metrics inlined and reports where the metrics
// came from ("snapshot" or "live").
func (s *Service) ListAreas(ctx context.Context, codes []string, limit int) ([]*domain.AreaLatest, string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.catalog.RequireMetrics(ctx); err != nil {
		return nil, "", classify(err)
	}
	if len(codes) == 0 {
		codes = constants.KeyMetricCodes
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	areas, err := s.locations.ListAreas(ctx, uint64(limit))
	if err != nil {
		return nil, "", classify(err)
	}

	ids := make([]string, 0, len(areas))
	for _, a := range areas {
		ids = append(ids, a.ID)
	}

	rows, source, err := s.acceleration.LatestMetricsWithSource(ctx, store.LatestMetricsOpts{AreaIDs: ids, Codes: codes})
	if err != nil {
		return nil, "", classify(err)
	}

	byArea := make(map[string]map[string]*domain.LatestMetric, len(ids))
	for _, row := range rows {
		if byArea[row.AreaID] == nil {
			byArea[row.AreaID] = map[string]*domain.LatestMetric{}
		}
		byArea[row.AreaID][row.Code] = row
	}

	listing := make([]*domain.AreaLatest, 0, len(areas))
	for _, a := range areas {
		listing = append(listing, &domain.AreaLatest{
			ID:      a.ID,
			Name:    a.Name,
			Metrics: numericValues(byArea[a.ID], codes),
		})
	}

	return listing, source, nil
}

func (s *Service) AreaDetail(ctx context.Context, areaRef string) (*domain.AreaView, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	areaID, err := s.resolve(ctx, domain.LevelArea, areaRef)
	if err != nil {
		return nil, classify(err)
	}

	detail, err := s.locations.GetAreaDetail(ctx, areaID)
	if errors.Is(err, constants.ErrDBNotFound) {
		return nil, constants.ErrNotFound.Withf("area %q", areaRef)
	}
	if err != nil {
		return nil, classify(err)
	}

	view := &domain.AreaView{AreaDetail: detail, Metrics: map[string]decimal.NullDecimal{}}

	supported, err := s.catalog.MetricsSupported(ctx)
	if err != nil {
		return nil, classify(err)
	}
	if supported {
		latest, err := s.aggregation.LatestMetrics(ctx, areaID, constants.KeyMetricCodes)
		if err != nil {
			return nil, classify(err)
		}
		view.Metrics = numericValues(latest, constants.KeyMetricCodes)
	}

	return view, nil
}

func (s *Service) AreaStatistics(ctx context.Context, areaRef string) (*domain.AreaStatistics, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	areaID, err := s.resolveMetricArea(ctx, areaRef)
	if err != nil {
		return nil, classify(err)
	}

	trends := make(map[string]*domain.Trend, len(constants.KeyMetricCodes))
	for _, code := range constants.KeyMetricCodes {
		if trends[code], err = s.aggregation.Trend(ctx, areaID, code); err != nil {
			return nil, classify(err)
		}
	}

	return &domain.AreaStatistics{
		AveragePrice: trends[constants.MetricAvgPrice].Latest,
		PriceTrend:   trends[constants.MetricAvgPrice].ChangePct,
		RentalYield:  trends[constants.MetricRentalYield].Latest,
		RentalTrend:  trends[constants.MetricRentalYield].ChangePct,
		VacancyRate:  trends[constants.MetricVacancyRate].Latest,
		VacancyTrend: trends[constants.MetricVacancyRate].ChangePct,
	}, nil
}

var propertyTypes = []string{"residential", "commercial", "industrial", "retail"}

// TypeDistribution reads the latest count_<type> metrics of an area.
func (s *Service) TypeDistribution(ctx context.Context, areaRef string) ([]*domain.TypeCount, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	areaID, err := s.resolveMetricArea(ctx, areaRef)
	if err != nil {
		return nil, classify(err)
	}

	codes := make([]string, 0, len(propertyTypes))
	for _, t := range propertyTypes {
		codes = append(codes, "count_"+t)
	}

	latest, err := s.aggregation.LatestMetrics(ctx, areaID, codes)
	if err != nil {
		return nil, classify(err)
	}

	distribution := []*domain.TypeCount{}
	for _, t := range propertyTypes {
		m, ok := latest["count_"+t]
		if !ok || !m.ValueNumeric.Valid {
			continue
		}
		distribution = append(distribution, &domain.TypeCount{Type: t, Count: m.ValueNumeric.Decimal.IntPart()})
	}

	return distribution, nil
}

// PriceSeries returns the avg_price_<type> series since January 1st of the year years-1 ago.
func (s *Service) PriceSeries(ctx context.Context, areaRef string, years int, now time.Time) (map[string][]*domain.PricePoint, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	areaID, err := s.resolveMetricArea(ctx, areaRef)
	if err != nil {
		return nil, classify(err)
	}

	years = max(years, 1)
	start := domain.NewDate(now.Year()-years+1, time.January, 1)

	codes := make([]string, 0, len(propertyTypes))
	for _, t := range propertyTypes {
		codes = append(codes, "avg_price_"+t)
	}

	series, err := s.aggregation.MultiSeries(ctx, areaID, codes, aggregation.SeriesRange{Start: &start})
	if err != nil {
		return nil, classify(err)
	}

	result := make(map[string][]*domain.PricePoint, len(propertyTypes))
	for _, t := range propertyTypes {
		points := []*domain.PricePoint{}
		for _, p := range series["avg_price_"+t] {
			if !p.ValueNumeric.Valid {
				continue
			}
			points = append(points, &domain.PricePoint{PeriodStart: p.PeriodStart, Value: p.ValueNumeric.Decimal})
		}
		result[t] = points
	}

	return result, nil
}

func numericValues(latest map[string]*domain.LatestMetric, codes []string) map[string]decimal.NullDecimal {
	values := make(map[string]decimal.NullDecimal, len(codes))
	for _, code := range codes {
		if m, ok := latest[code]; ok {
			values[code] = m.ValueNumeric
			continue
		}
		values[code] = decimal.NullDecimal{}
	}
	return values
}

// ParseCodes splits a comma separated metric list, dropping blanks and duplicates.
func ParseCodes(raw string) []string {
	var codes []string
	seen := map[string]bool{}
	for _, code := range strings.Split(raw, ",") {
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes
}
