package domain

import (
	"github.com/shopspring/decimal"
)

type Health struct {
	Service  string `json:"service"`
	Driver   string `json:"driver"`
	Metrics  bool   `json:"metrics"`
	Snapshot string `json:"snapshot"`
}

// AreaView is an area detail with its key metrics inlined.
type AreaView struct {
	*AreaDetail
	Metrics map[string]decimal.NullDecimal `json:"metrics"`
}

type AreaStatistics struct {
	AveragePrice decimal.NullDecimal `json:"average_price"`
	PriceTrend   decimal.NullDecimal `json:"price_trend"`
	RentalYield  decimal.NullDecimal `json:"rental_yield"`
	RentalTrend  decimal.NullDecimal `json:"rental_trend"`
	VacancyRate  decimal.NullDecimal `json:"vacancy_rate"`
	VacancyTrend decimal.NullDecimal `json:"vacancy_trend"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

type PricePoint struct {
	PeriodStart Date            `json:"period_start"`
	Value       decimal.Decimal `json:"value"`
}
