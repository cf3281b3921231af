// Package seed fills a fresh database with the metric catalog and an optional demo hierarchy.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/store"
	"github.com/shopspring/decimal"
)

const source = "seed"

type Store interface {
	FindID(ctx context.Context, level domain.Level, opts store.FindIDOpts) (string, error)
	UpsertCountry(ctx context.Context, country *domain.Country) (string, error)
	UpsertProvince(ctx context.Context, province *domain.Province) (string, error)
	UpsertCity(ctx context.Context, city *domain.City) (string, error)
	UpsertArea(ctx context.Context, area *domain.Area) (string, error)
	UpsertMetric(ctx context.Context, metric *domain.Metric) (*domain.Metric, error)
	InsertMetricValue(ctx context.Context, opts store.InsertMetricValueOpts) (bool, error)
}

type Report struct {
	Metrics   int `json:"metrics"`
	Locations int `json:"locations"`
	Facts     int `json:"facts"`
}

type Service struct {
	store Store
}

func NewSeedService(store Store) *Service {
	return &Service{store: store}
}

func metric(code, name, unit, category string) *domain.Metric {
	return &domain.Metric{
		Code:     code,
		Name:     name,
		Unit:     &unit,
		Category: &category,
		DataType: domain.DataTypeNumeric,
		IsActive: true,
	}
}

// Catalog is the metric catalog every database starts with.
func Catalog() []*domain.Metric {
	return []*domain.Metric{
		metric(constants.MetricAvgPrice, "Average Price", "ZAR", "price"),
		metric(constants.MetricRentalYield, "Rental Yield", "%", "rental"),
		metric(constants.MetricVacancyRate, "Vacancy Rate", "%", "rental"),
		metric(constants.MetricSalesVolume, "Sales Volume", "count", "market"),
		metric(constants.MetricCrimeIndex, "Crime Index", "index", "safety"),
		metric(constants.MetricPopulationGrowth, "Population Growth", "%", "demographics"),
		metric(constants.MetricPlannedDevCount, "Planned Developments", "count", "development"),

		metric(constants.MetricCountResidential, "Residential Properties", "count", "inventory"),
		metric(constants.MetricCountCommercial, "Commercial Properties", "count", "inventory"),
		metric(constants.MetricCountIndustrial, "Industrial Properties", "count", "inventory"),
		metric(constants.MetricCountRetail, "Retail Properties", "count", "inventory"),

		metric(constants.MetricAvgPriceResidential, "Average Residential Price", "ZAR", "price"),
		metric(constants.MetricAvgPriceCommercial, "Average Commercial Price", "ZAR", "price"),
		metric(constants.MetricAvgPriceIndustrial, "Average Industrial Price", "ZAR", "price"),
		metric(constants.MetricAvgPriceRetail, "Average Retail Price", "ZAR", "price"),
	}
}

// SeedCatalog upserts Catalog and returns the stored metrics by code.
func (s *Service) SeedCatalog(ctx context.Context) (map[string]*domain.Metric, error) {
	stored := make(map[string]*domain.Metric)
	for _, m := range Catalog() {
		saved, err := s.store.UpsertMetric(ctx, m)
		if err != nil {
			return nil, err
		}
		stored[saved.Code] = saved
	}

	logger.Infof(ctx, "seeded %d metrics", len(stored))
	return stored, nil
}

type demoCity struct {
	province string
	city     string
	areas    []string
}

type demoFact struct {
	area   string
	code   string
	period string
	value  string
}

const (
	demoCountry     = "South Africa"
	demoCountryCode = "ZA"
)

var demoHierarchy = []demoCity{
	{province: "Gauteng", city: "Johannesburg", areas: []string{"Sandton", "Rosebank", "Fourways", "Randburg"}},
	{province: "Western Cape", city: "Cape Town", areas: []string{"Sea Point", "Claremont", "Rondebosch", "Observatory"}},
}

func demoFacts() []demoFact {
	var facts []demoFact
	for _, area := range []string{"Sandton", "Rosebank", "Sea Point", "Claremont"} {
		facts = append(facts,
			demoFact{area, constants.MetricAvgPrice, "2025-08-01", "3000000"},
			demoFact{area, constants.MetricAvgPrice, "2025-09-01", "3250000"},
			demoFact{area, constants.MetricRentalYield, "2025-08-01", "6.8"},
			demoFact{area, constants.MetricRentalYield, "2025-09-01", "7.2"},
			demoFact{area, constants.MetricVacancyRate, "2025-08-01", "7.0"},
			demoFact{area, constants.MetricVacancyRate, "2025-09-01", "6.5"},
		)
	}
	return append(facts,
		demoFact{"Sandton", constants.MetricCrimeIndex, "2025-09-01", "42"},
		demoFact{"Sandton", constants.MetricPopulationGrowth, "2025-09-01", "1.8"},
		demoFact{"Sandton", constants.MetricPlannedDevCount, "2025-09-01", "7"},
	)
}

// ensure returns the id of the row named name at level, creating it with create when absent.
func (s *Service) ensure(ctx context.Context, level domain.Level, name string, create func() (string, error)) (string, bool, error) {
	id, err := s.store.FindID(ctx, level, store.FindIDOpts{Name: &name})
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, constants.ErrDBNotFound) {
		return "", false, err
	}

	id, err = create()
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// SeedDemo creates the South Africa demo hierarchy and its sample facts. Existing rows are reused,
// so running it twice changes nothing.
func (s *Service) SeedDemo(ctx context.Context) (*Report, error) {
	metrics, err := s.SeedCatalog(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{Metrics: len(metrics)}

	code := demoCountryCode
	countryID, err := s.store.FindID(ctx, domain.LevelCountry, store.FindIDOpts{Code: &code})
	if errors.Is(err, constants.ErrDBNotFound) {
		countryID, err = s.store.UpsertCountry(ctx, &domain.Country{Name: demoCountry, Code: &code})
		report.Locations++
	}
	if err != nil {
		return nil, fmt.Errorf("seed country: %w", err)
	}

	areaIDs := make(map[string]string)
	for _, dc := range demoHierarchy {
		provinceID, created, err := s.ensure(ctx, domain.LevelProvince, dc.province, func() (string, error) {
			return s.store.UpsertProvince(ctx, &domain.Province{Name: dc.province, CountryID: countryID})
		})
		if err != nil {
			return nil, fmt.Errorf("seed province %s: %w", dc.province, err)
		}
		if created {
			report.Locations++
		}

		cityID, created, err := s.ensure(ctx, domain.LevelCity, dc.city, func() (string, error) {
			return s.store.UpsertCity(ctx, &domain.City{Name: dc.city, ProvinceID: provinceID})
		})
		if err != nil {
			return nil, fmt.Errorf("seed city %s: %w", dc.city, err)
		}
		if created {
			report.Locations++
		}

		for _, name := range dc.areas {
			areaID, created, err := s.ensure(ctx, domain.LevelArea, name, func() (string, error) {
				return s.store.UpsertArea(ctx, &domain.Area{Name: name, CityID: cityID})
			})
			if err != nil {
				return nil, fmt.Errorf("seed area %s: %w", name, err)
			}
			if created {
				report.Locations++
			}
			areaIDs[name] = areaID
		}
	}

	src := source
	for _, f := range demoFacts() {
		period, err := domain.ParseDate(f.period)
		if err != nil {
			return nil, err
		}
		inserted, err := s.store.InsertMetricValue(ctx, store.InsertMetricValueOpts{
			AreaID:       areaIDs[f.area],
			MetricID:     metrics[f.code].ID,
			PeriodStart:  period,
			ValueNumeric: decimal.NewNullDecimal(decimal.RequireFromString(f.value)),
			Source:       &src,
		})
		if err != nil {
			return nil, fmt.Errorf("seed fact %s/%s: %w", f.area, f.code, err)
		}
		if inserted {
			report.Facts++
		}
	}

	logger.Info(ctx, "demo seed done", "locations", report.Locations, "facts", report.Facts)
	return report, nil
}
