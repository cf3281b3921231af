package domain

import (
	"github.com/shopspring/decimal"
)

type DataType string

const (
	DataTypeNumeric DataType = "numeric"
	DataTypeText    DataType = "text"
	DataTypeJSON    DataType = "json"
)

type Metric struct {
	ID          int64    `db:"id" json:"-"`
	Code        string   `db:"code" json:"code"`
	Name        string   `db:"name" json:"name"`
	Description *string  `db:"description" json:"description,omitempty"`
	Unit        *string  `db:"unit" json:"unit,omitempty"`
	Category    *string  `db:"category" json:"category,omitempty"`
	DataType    DataType `db:"data_type" json:"data_type"`
	IsActive    bool     `db:"is_active" json:"is_active"`
}

// MetricValue is one fact of the append-only fact table.
type MetricValue struct {
	ID           int64               `db:"id" json:"-"`
	AreaID       string              `db:"area_id" json:"area_id"`
	MetricID     int64               `db:"metric_id" json:"-"`
	PeriodStart  Date                `db:"period_start" json:"period_start"`
	PeriodEnd    *Date               `db:"period_end" json:"period_end,omitempty"`
	ValueNumeric decimal.NullDecimal `db:"value_numeric" json:"value_numeric"`
	ValueText    *string             `db:"value_text" json:"value_text,omitempty"`
	ValueJSON    RawJSON             `db:"value_json" json:"value_json,omitempty"`
	Source       *string             `db:"source" json:"source,omitempty"`
	QualityScore *int64              `db:"quality_score" json:"quality_score,omitempty"`
	CreatedAt    Timestamp           `db:"created_at" json:"created_at"`
}

// LatestMetric is the latest fact of one metric for one area, joined with its catalog entry.
type LatestMetric struct {
	AreaID       string              `db:"area_id" json:"-"`
	Code         string              `db:"code" json:"code"`
	Name         string              `db:"name" json:"name"`
	Unit         *string             `db:"unit" json:"unit,omitempty"`
	Category     *string             `db:"category" json:"category,omitempty"`
	PeriodStart  Date                `db:"period_start" json:"latest_period_start"`
	ValueNumeric decimal.NullDecimal `db:"value_numeric" json:"value_numeric"`
	ValueText    *string             `db:"value_text" json:"value_text,omitempty"`
	ValueJSON    RawJSON             `db:"value_json" json:"value_json,omitempty"`
	Source       *string             `db:"source" json:"source,omitempty"`
	QualityScore *int64              `db:"quality_score" json:"quality_score,omitempty"`
}

// SeriesPoint is one element of a metric time series, ordered by PeriodStart.
type SeriesPoint struct {
	PeriodStart  Date                `db:"period_start" json:"period_start"`
	ValueNumeric decimal.NullDecimal `db:"value_numeric" json:"value_numeric"`
	ValueText    *string             `db:"value_text" json:"value_text,omitempty"`
	ValueJSON    RawJSON             `db:"value_json" json:"value_json,omitempty"`
	Source       *string             `db:"source" json:"source,omitempty"`
	QualityScore *int64              `db:"quality_score" json:"quality_score,omitempty"`
}

// CodedSeriesPoint is a series point tagged with its metric code, for multi-metric range queries.
type CodedSeriesPoint struct {
	Code string `db:"code"`
	SeriesPoint
}

type Trend struct {
	Code      string              `json:"code"`
	Latest    decimal.NullDecimal `json:"latest"`
	Previous  decimal.NullDecimal `json:"previous"`
	ChangePct decimal.NullDecimal `json:"change_pct"`
}

type AggregationKind string

const (
	AggregationSum AggregationKind = "sum"
	AggregationAvg AggregationKind = "avg"
)

type RollupMetric struct {
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	Unit        *string             `json:"unit,omitempty"`
	Category    *string             `json:"category,omitempty"`
	Value       decimal.NullDecimal `json:"value"`
	Aggregation AggregationKind     `json:"aggregation"`
	SampleCount int                 `json:"sample_count"`
}

type Rollup struct {
	Level     Level                    `json:"level"`
	ParentID  string                   `json:"parent_id"`
	AreaCount int                      `json:"area_count"`
	Metrics   map[string]*RollupMetric `json:"metrics"`
}

// AreaLatest is an area listing row with its inlined latest numeric metrics.
type AreaLatest struct {
	ID      string                         `json:"id"`
	Name    string                         `json:"name"`
	Metrics map[string]decimal.NullDecimal `json:"metrics"`
}

type RefreshResult struct {
	Actions []string `json:"actions"`
	State   string   `json:"state"`
}
