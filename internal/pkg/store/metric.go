package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ougirez/areametrics/internal/domain"
	"github.com/shopspring/decimal"
)

type ListMetricsOpts struct {
	OnlyActive bool
	Codes      []string
}

type InsertMetricValueOpts struct {
	AreaID       string
	MetricID     int64
	PeriodStart  domain.Date
	PeriodEnd    *domain.Date
	ValueNumeric decimal.NullDecimal
	ValueText    *string
	ValueJSON    domain.RawJSON
	Source       *string
	QualityScore *int64
}

type LatestMetricsOpts struct {
	AreaIDs []string
	// Codes restricts the result to these metric codes; empty means every metric.
	Codes []string
}

type RecentValuesOpts struct {
	AreaID      string
	Code        string
	Limit       uint64
	NumericOnly bool
}

// SeriesOpts selects a time range either by Start/End (inclusive, either may be open) or by a
// trailing window of Months; Months wins when both are set.
type SeriesOpts struct {
	AreaID string
	Codes  []string
	Start  *domain.Date
	End    *domain.Date
	Months *int
}

var (
	metricColumns = []string{"id", "code", "name", "description", "unit", "category", "data_type", "is_active"}
	latestColumns = []string{
		"area_id", "code", "name", "unit", "category", "period_start",
		"value_numeric", "value_text", "value_json", "source", "quality_score",
	}
	seriesColumns = []string{"v.period_start", "v.value_numeric", "v.value_text", "v.value_json", "v.source", "v.quality_score"}
)

// latestOrder defines "latest": greatest period, then newest correction, then highest id.
const latestOrder = "v.period_start DESC, v.created_at DESC, v.id DESC"

func (s *store) ListMetrics(ctx context.Context, opts ListMetricsOpts) ([]*domain.Metric, error) {
	query := s.builder().Select(metricColumns...).
		From(tableMetrics).
		OrderBy("category", "code")

	if opts.OnlyActive {
		query = query.Where(sq.Eq{"is_active": true})
	}
	if len(opts.Codes) > 0 {
		query = query.Where(s.dialect.InList("code", opts.Codes))
	}

	selected := []*domain.Metric{}
	if err := s.pool.Selectx(ctx, &selected, query); err != nil {
		return nil, fmt.Errorf("store.ListMetrics: %w", err)
	}

	return selected, nil
}

func (s *store) GetMetricByCode(ctx context.Context, code string) (*domain.Metric, error) {
	query := s.builder().Select(metricColumns...).
		From(tableMetrics).
		Where(sq.Eq{"code": code})

	var selected domain.Metric
	if err := s.pool.Getx(ctx, &selected, query); err != nil {
		return nil, wrapErr(err)
	}

	return &selected, nil
}

func (s *store) UpsertMetric(ctx context.Context, metric *domain.Metric) (*domain.Metric, error) {
	dataType := metric.DataType
	if dataType == "" {
		dataType = domain.DataTypeNumeric
	}

	query := s.builder().Insert(tableMetrics).
		Columns("code", "name", "description", "unit", "category", "data_type", "is_active").
		Values(metric.Code, metric.Name, metric.Description, metric.Unit, metric.Category, string(dataType), metric.IsActive).
		Suffix(`ON CONFLICT (code) DO UPDATE SET
	name = excluded.name,
	description = excluded.description,
	unit = excluded.unit,
	category = excluded.category,
	data_type = excluded.data_type,
	is_active = excluded.is_active`)

	if _, err := s.pool.Execx(ctx, query); err != nil {
		return nil, fmt.Errorf("store.UpsertMetric: %w", err)
	}

	return s.GetMetricByCode(ctx, metric.Code)
}

// InsertMetricValue appends one fact. A fact for an already recorded (area, metric, period_start) is
// ignored and reported as not inserted.
func (s *store) InsertMetricValue(ctx context.Context, opts InsertMetricValueOpts) (bool, error) {
	query := s.builder().Insert(tableMetricValues).
		Columns(
			"area_id", "metric_id", "period_start", "period_end",
			"value_numeric", "value_text", "value_json", "source", "quality_score",
		).
		Values(
			opts.AreaID, opts.MetricID, opts.PeriodStart, opts.PeriodEnd,
			opts.ValueNumeric, opts.ValueText, opts.ValueJSON, opts.Source, opts.QualityScore,
		).
		Suffix("ON CONFLICT (area_id, metric_id, period_start) DO NOTHING")

	affected, err := s.pool.Execx(ctx, query)
	if err != nil {
		return false, fmt.Errorf("store.InsertMetricValue: %w", err)
	}

	return affected > 0, nil
}

// LatestMetrics returns the latest fact per (area, metric) for the given areas.
func (s *store) LatestMetrics(ctx context.Context, opts LatestMetricsOpts) ([]*domain.LatestMetric, error) {
	selected := []*domain.LatestMetric{}
	if len(opts.AreaIDs) == 0 {
		return selected, nil
	}

	ranked := sq.Select(
		"v.area_id", "m.code", "m.name", "m.unit", "m.category", "v.period_start",
		"v.value_numeric", "v.value_text", "v.value_json", "v.source", "v.quality_score",
		"ROW_NUMBER() OVER (PARTITION BY v.area_id, v.metric_id ORDER BY "+latestOrder+") AS rn",
	).
		From(tableMetricValues + " v").
		Join(tableMetrics + " m ON m.id = v.metric_id").
		Where(s.dialect.InList("v.area_id", opts.AreaIDs))

	if len(opts.Codes) > 0 {
		ranked = ranked.Where(s.dialect.InList("m.code", opts.Codes))
	}

	query := s.builder().Select(latestColumns...).
		FromSelect(ranked, "ranked").
		Where(sq.Eq{"rn": 1}).
		OrderBy("area_id", "code")

	if err := s.pool.Selectx(ctx, &selected, query); err != nil {
		return nil, fmt.Errorf("store.LatestMetrics: %w", err)
	}

	return selected, nil
}

// RecentValues returns up to Limit facts of one metric for one area, newest first.
func (s *store) RecentValues(ctx context.Context, opts RecentValuesOpts) ([]*domain.SeriesPoint, error) {
	query := s.builder().Select(seriesColumns...).
		From(tableMetricValues + " v").
		Join(tableMetrics + " m ON m.id = v.metric_id").
		Where(sq.Eq{"v.area_id": opts.AreaID, "m.code": opts.Code}).
		OrderBy(latestOrder)

	if opts.NumericOnly {
		query = query.Where(sq.NotEq{"v.value_numeric": nil})
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	selected := []*domain.SeriesPoint{}
	if err := s.pool.Selectx(ctx, &selected, query); err != nil {
		return nil, fmt.Errorf("store.RecentValues: %w", err)
	}

	return selected, nil
}

// Series returns the facts of the given metrics for one area ordered by period_start ascending.
func (s *store) Series(ctx context.Context, opts SeriesOpts) ([]*domain.CodedSeriesPoint, error) {
	selected := []*domain.CodedSeriesPoint{}
	if len(opts.Codes) == 0 {
		return selected, nil
	}

	query := s.builder().Select("m.code").
		Columns(seriesColumns...).
		From(tableMetricValues + " v").
		Join(tableMetrics + " m ON m.id = v.metric_id").
		Where(sq.Eq{"v.area_id": opts.AreaID}).
		Where(s.dialect.InList("m.code", opts.Codes)).
		OrderBy("v.period_start ASC", "m.code", "v.created_at DESC", "v.id DESC")

	switch {
	case opts.Months != nil:
		query = query.Where(s.dialect.SinceMonths("v.period_start", *opts.Months))
	default:
		if opts.Start != nil {
			query = query.Where(sq.GtOrEq{"v.period_start": *opts.Start})
		}
		if opts.End != nil {
			query = query.Where(sq.LtOrEq{"v.period_start": *opts.End})
		}
	}

	if err := s.pool.Selectx(ctx, &selected, query); err != nil {
		return nil, fmt.Errorf("store.Series: %w", err)
	}

	return selected, nil
}
