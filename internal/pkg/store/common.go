package store

import (
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
)

const (
	tableCountries     = "countries"
	tableProvinces     = "provinces"
	tableCities        = "cities"
	tableAreas         = "areas"
	tableMetrics       = "metrics"
	tableMetricValues  = "area_metric_values"
	tableSnapshotState = "metric_snapshot_state"
	viewLatestSnapshot = "area_metric_latest_mv"
)

var mapping = map[error]error{
	pgx.ErrNoRows: constants.ErrDBNotFound,
	sql.ErrNoRows: constants.ErrDBNotFound,
}

func wrapErr(err error) error {
	for k, v := range mapping {
		if errors.Is(err, k) {
			return v
		}
	}
	return err
}

// builder returns a squirrel StatementBuilder with the dialect's placeholder format.
func (s *store) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(s.dialect.Placeholder())
}

type levelTable struct {
	table        string
	parentColumn string
	hasCode      bool
}

var levelTables = map[domain.Level]levelTable{
	domain.LevelCountry:  {table: tableCountries, hasCode: true},
	domain.LevelProvince: {table: tableProvinces, parentColumn: "country_id"},
	domain.LevelCity:     {table: tableCities, parentColumn: "province_id"},
	domain.LevelArea:     {table: tableAreas, parentColumn: "city_id"},
}

func tableFor(level domain.Level) (levelTable, error) {
	t, ok := levelTables[level]
	if !ok {
		return levelTable{}, constants.ErrBadRequest.Withf("unknown level %q", level)
	}
	return t, nil
}
