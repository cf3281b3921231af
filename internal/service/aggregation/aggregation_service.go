package aggregation

import (
	"context"
	"fmt"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/domain/dto"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/metrics"
	"github.com/ougirez/areametrics/internal/pkg/store"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFanout = 8
	rollupBatch   = 100
)

// LatestSource yields the latest fact per (area, metric). The live store and the acceleration
// snapshot both implement it.
type LatestSource interface {
	LatestMetrics(ctx context.Context, opts store.LatestMetricsOpts) ([]*domain.LatestMetric, error)
}

type Store interface {
	LatestSource
	RecentValues(ctx context.Context, opts store.RecentValuesOpts) ([]*domain.SeriesPoint, error)
	Series(ctx context.Context, opts store.SeriesOpts) ([]*domain.CodedSeriesPoint, error)
	ListAreaIDsUnder(ctx context.Context, level domain.Level, parentID string) ([]string, error)
	ListMetrics(ctx context.Context, opts store.ListMetricsOpts) ([]*domain.Metric, error)
}

type Config struct {
	SumCodes    []string
	AvgCodes    []string
	DefaultKind domain.AggregationKind
	Fanout      int
}

// SeriesRange is either an explicit Start/End window or a trailing window of Months.
type SeriesRange struct {
	Start  *domain.Date
	End    *domain.Date
	Months *int
}

func (r SeriesRange) validate() error {
	if r.Months != nil && *r.Months <= 0 {
		return constants.ErrBadRequest.Withf("months must be positive")
	}
	if r.Start != nil && r.End != nil && r.End.Before(r.Start.Time) {
		return constants.ErrBadRequest.Withf("end before start")
	}
	return nil
}

type Service struct {
	store  Store
	source LatestSource
	kinds  *kindTable
	fanout int
}

// NewAggregationService builds the engine. Latest lookups go through source when it is not nil,
// otherwise straight to the store.
func NewAggregationService(store Store, source LatestSource, cfg Config) *Service {
	if source == nil {
		source = store
	}
	fanout := cfg.Fanout
	if fanout <= 0 {
		fanout = defaultFanout
	}

	return &Service{
		store:  store,
		source: source,
		kinds:  newKindTable(cfg.SumCodes, cfg.AvgCodes, cfg.DefaultKind),
		fanout: fanout,
	}
}

// LatestMetrics maps metric code to the latest fact of that metric for the area. An area without
// facts yields an empty map.
func (s *Service) LatestMetrics(ctx context.Context, areaID string, codes []string) (map[string]*domain.LatestMetric, error) {
	rows, err := s.source.LatestMetrics(ctx, store.LatestMetricsOpts{AreaIDs: []string{areaID}, Codes: codes})
	if err != nil {
		return nil, fmt.Errorf("LatestMetrics: %w", err)
	}

	latest := make(map[string]*domain.LatestMetric, len(rows))
	for _, row := range rows {
		latest[row.Code] = row
	}

	return latest, nil
}

// LatestValue is the newest fact of one metric for one area; found is false when there is none.
func (s *Service) LatestValue(ctx context.Context, areaID, code string) (*domain.SeriesPoint, bool, error) {
	points, err := s.store.RecentValues(ctx, store.RecentValuesOpts{AreaID: areaID, Code: code, Limit: 1})
	if err != nil {
		return nil, false, fmt.Errorf("store.RecentValues: %w", err)
	}
	if len(points) == 0 {
		return nil, false, nil
	}
	return points[0], true, nil
}

// Trend compares the two most recent numeric facts. ChangePct stays null with fewer than two facts
// or when the previous value is zero.
func (s *Service) Trend(ctx context.Context, areaID, code string) (*domain.Trend, error) {
	points, err := s.store.RecentValues(ctx, store.RecentValuesOpts{
		AreaID:      areaID,
		Code:        code,
		Limit:       2,
		NumericOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("store.RecentValues: %w", err)
	}

	trend := &domain.Trend{Code: code}
	if len(points) > 0 {
		trend.Latest = points[0].ValueNumeric
	}
	if len(points) < 2 {
		return trend, nil
	}

	trend.Previous = points[1].ValueNumeric
	trend.ChangePct = PercentChange(trend.Latest, trend.Previous)
	return trend, nil
}

// PercentChange is (latest - previous) / previous * 100, null when undefined.
func PercentChange(latest, previous decimal.NullDecimal) decimal.NullDecimal {
	if !latest.Valid || !previous.Valid || previous.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	change := latest.Decimal.Sub(previous.Decimal).Div(previous.Decimal).Mul(decimal.NewFromInt(100))
	return decimal.NewNullDecimal(change.Round(4))
}

func (s *Service) Series(ctx context.Context, areaID, code string, rng SeriesRange) ([]*domain.SeriesPoint, error) {
	series, err := s.MultiSeries(ctx, areaID, []string{code}, rng)
	if err != nil {
		return nil, err
	}
	return series[code], nil
}

// MultiSeries returns one ascending series per code; codes without facts map to an empty slice.
func (s *Service) MultiSeries(ctx context.Context, areaID string, codes []string, rng SeriesRange) (map[string][]*domain.SeriesPoint, error) {
	if err := rng.validate(); err != nil {
		return nil, err
	}

	rows, err := s.store.Series(ctx, store.SeriesOpts{
		AreaID: areaID,
		Codes:  codes,
		Start:  rng.Start,
		End:    rng.End,
		Months: rng.Months,
	})
	if err != nil {
		return nil, fmt.Errorf("store.Series: %w", err)
	}

	series := make(map[string][]*domain.SeriesPoint, len(codes))
	for _, code := range codes {
		series[code] = []*domain.SeriesPoint{}
	}
	for _, row := range rows {
		points := series[row.Code]
		// rows of one period arrive newest first; keep only that one
		if n := len(points); n > 0 && points[n-1].PeriodStart.Equal(row.PeriodStart.Time) {
			continue
		}
		point := row.SeriesPoint
		series[row.Code] = append(points, &point)
	}

	return series, nil
}

// Rollup aggregates the latest value of each metric across every area under a city or province.
// It either returns every requested metric or fails as a whole.
func (s *Service) Rollup(ctx context.Context, level domain.Level, parentID string, codes []string) (*domain.Rollup, error) {
	if level != domain.LevelCity && level != domain.LevelProvince {
		return nil, constants.ErrBadRequest.Withf("rollup is defined for cities and provinces, got %q", level)
	}
	for _, code := range codes {
		if _, err := s.kinds.kindOf(code); err != nil {
			return nil, err
		}
	}

	areaIDs, err := s.store.ListAreaIDsUnder(ctx, level, parentID)
	if err != nil {
		return nil, fmt.Errorf("store.ListAreaIDsUnder: %w", err)
	}
	metrics.RollupSamples.WithLabelValues(string(level)).Observe(float64(len(areaIDs)))

	acc := dto.NewRollupDto()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.fanout)
	for start := 0; start < len(areaIDs); start += rollupBatch {
		batch := areaIDs[start:min(start+rollupBatch, len(areaIDs))]
		eg.Go(func() error {
			rows, err := s.source.LatestMetrics(egCtx, store.LatestMetricsOpts{AreaIDs: batch, Codes: codes})
			if err != nil {
				return fmt.Errorf("LatestMetrics, areas-%d: %w", len(batch), err)
			}
			for _, row := range rows {
				acc.Put(row)
			}
			return nil
		})
	}
	if err = eg.Wait(); err != nil {
		logger.Errorf(ctx, "rollup %s %s: %s", level, parentID, err.Error())
		return nil, err
	}

	wanted := codes
	if len(wanted) == 0 {
		wanted = acc.Codes()
	}

	rollup := &domain.Rollup{
		Level:     level,
		ParentID:  parentID,
		AreaCount: len(areaIDs),
		Metrics:   make(map[string]*domain.RollupMetric, len(wanted)),
	}

	var missing []string
	for _, code := range wanted {
		samples, ok := acc.Metrics[code]
		if !ok {
			missing = append(missing, code)
			continue
		}
		if len(codes) == 0 && len(samples.Values) == 0 {
			// non-numeric metric found while rolling up everything
			continue
		}

		kind, err := s.kinds.kindOf(code)
		if err != nil {
			return nil, err
		}
		value, count := samples.Aggregate(kind)
		rollup.Metrics[code] = &domain.RollupMetric{
			Code:        code,
			Name:        samples.Name,
			Unit:        samples.Unit,
			Category:    samples.Category,
			Value:       value,
			Aggregation: kind,
			SampleCount: count,
		}
	}

	if len(missing) > 0 {
		if err = s.fillMissing(ctx, rollup, missing); err != nil {
			return nil, err
		}
	}

	return rollup, nil
}

// fillMissing reports requested metrics that no area has data for, with a null value.
func (s *Service) fillMissing(ctx context.Context, rollup *domain.Rollup, codes []string) error {
	catalog, err := s.store.ListMetrics(ctx, store.ListMetricsOpts{Codes: codes})
	if err != nil {
		return fmt.Errorf("store.ListMetrics: %w", err)
	}
	byCode := make(map[string]*domain.Metric, len(catalog))
	for _, m := range catalog {
		byCode[m.Code] = m
	}

	for _, code := range codes {
		kind, err := s.kinds.kindOf(code)
		if err != nil {
			return err
		}
		entry := &domain.RollupMetric{Code: code, Aggregation: kind}
		if m, ok := byCode[code]; ok {
			entry.Name = m.Name
			entry.Unit = m.Unit
			entry.Category = m.Category
		}
		rollup.Metrics[code] = entry
	}

	return nil
}
