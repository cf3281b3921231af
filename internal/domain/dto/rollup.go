package dto

import (
	"sort"
	"sync"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/shopspring/decimal"
)

// MetricSamples collects the latest numeric value of one metric from every contributing area.
type MetricSamples struct {
	Code     string
	Name     string
	Unit     *string
	Category *string
	Values   []decimal.Decimal
	valuesMx sync.Mutex
}

func (m *MetricSamples) PutValue(value decimal.Decimal) {
	m.valuesMx.Lock()
	defer m.valuesMx.Unlock()

	m.Values = append(m.Values, value)
}

// Aggregate folds the samples with kind. The value is null when no area contributed.
func (m *MetricSamples) Aggregate(kind domain.AggregationKind) (decimal.NullDecimal, int) {
	m.valuesMx.Lock()
	defer m.valuesMx.Unlock()

	if len(m.Values) == 0 {
		return decimal.NullDecimal{}, 0
	}

	sum := decimal.Sum(m.Values[0], m.Values[1:]...)
	if kind == domain.AggregationAvg {
		sum = sum.Div(decimal.NewFromInt(int64(len(m.Values)))).Round(4)
	}

	return decimal.NewNullDecimal(sum), len(m.Values)
}

// RollupDto is the accumulator shared by the rollup fan-out goroutines.
type RollupDto struct {
	Metrics   map[string]*MetricSamples
	metricsMx sync.Mutex
}

func NewRollupDto() *RollupDto {
	return &RollupDto{Metrics: make(map[string]*MetricSamples)}
}

// GetMetric returns the samples for code, creating them from the first row that mentions it.
func (r *RollupDto) GetMetric(latest *domain.LatestMetric) *MetricSamples {
	r.metricsMx.Lock()
	defer r.metricsMx.Unlock()

	samples, ok := r.Metrics[latest.Code]
	if !ok {
		samples = &MetricSamples{
			Code:     latest.Code,
			Name:     latest.Name,
			Unit:     latest.Unit,
			Category: latest.Category,
		}
		r.Metrics[latest.Code] = samples
	}

	return samples
}

// Put records one latest row. Rows without a numeric value register the metric but add no sample.
func (r *RollupDto) Put(latest *domain.LatestMetric) {
	samples := r.GetMetric(latest)
	if latest.ValueNumeric.Valid {
		samples.PutValue(latest.ValueNumeric.Decimal)
	}
}

func (r *RollupDto) Codes() []string {
	r.metricsMx.Lock()
	defer r.metricsMx.Unlock()

	codes := make([]string, 0, len(r.Metrics))
	for code := range r.Metrics {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	return codes
}
