package aggregation

import (
	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
)

// builtinKinds is the aggregation policy per metric code. Additive counts and volumes are summed,
// everything else is averaged. A code missing here is not aggregated unless configured.
var builtinKinds = map[string]domain.AggregationKind{
	constants.MetricSalesVolume:         domain.AggregationSum,
	constants.MetricPlannedDevCount:     domain.AggregationSum,
	constants.MetricCountResidential:    domain.AggregationSum,
	constants.MetricCountCommercial:     domain.AggregationSum,
	constants.MetricCountIndustrial:     domain.AggregationSum,
	constants.MetricCountRetail:         domain.AggregationSum,
	constants.MetricAvgPrice:            domain.AggregationAvg,
	constants.MetricRentalYield:         domain.AggregationAvg,
	constants.MetricVacancyRate:         domain.AggregationAvg,
	constants.MetricCrimeIndex:          domain.AggregationAvg,
	constants.MetricPopulationGrowth:    domain.AggregationAvg,
	constants.MetricAvgPriceResidential: domain.AggregationAvg,
	constants.MetricAvgPriceCommercial:  domain.AggregationAvg,
	constants.MetricAvgPriceIndustrial:  domain.AggregationAvg,
	constants.MetricAvgPriceRetail:      domain.AggregationAvg,
}

type kindTable struct {
	kinds       map[string]domain.AggregationKind
	defaultKind domain.AggregationKind
}

func newKindTable(sumCodes, avgCodes []string, defaultKind domain.AggregationKind) *kindTable {
	kinds := make(map[string]domain.AggregationKind, len(builtinKinds)+len(sumCodes)+len(avgCodes))
	for code, kind := range builtinKinds {
		kinds[code] = kind
	}
	for _, code := range avgCodes {
		kinds[code] = domain.AggregationAvg
	}
	for _, code := range sumCodes {
		kinds[code] = domain.AggregationSum
	}
	return &kindTable{kinds: kinds, defaultKind: defaultKind}
}

func (t *kindTable) kindOf(code string) (domain.AggregationKind, error) {
	if kind, ok := t.kinds[code]; ok {
		return kind, nil
	}
	if t.defaultKind != "" {
		return t.defaultKind, nil
	}
	return "", constants.ErrAggregationAmbiguous.Withf("%s", code)
}
