package store

import (
	"fmt"

	"github.com/Masterminds/squirrel"
)

// Dialect isolates the SQL that differs between postgres and sqlite. Queries built in this package go
// through it; nothing above the store sees dialect-specific syntax.
type Dialect interface {
	Name() string
	Placeholder() squirrel.PlaceholderFormat
	// InList matches column against any of values.
	InList(column string, values []string) squirrel.Sqlizer
	// SinceMonths keeps rows whose date column is within the last months months, counted from today.
	SinceMonths(column string, months int) squirrel.Sqlizer
	// ContainsFold is a case-insensitive substring match.
	ContainsFold(column, term string) squirrel.Sqlizer
	// TableCount counts how many of tables exist.
	TableCount(tables []string) squirrel.SelectBuilder
	SupportsSnapshots() bool
	Schema() []string
}

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder() squirrel.PlaceholderFormat { return squirrel.Dollar }

func (Postgres) InList(column string, values []string) squirrel.Sqlizer {
	return squirrel.Expr(column+" = ANY(?)", values)
}

func (Postgres) SinceMonths(column string, months int) squirrel.Sqlizer {
	return squirrel.Expr(column+" >= CURRENT_DATE - make_interval(months => ?)", months)
}

func (Postgres) ContainsFold(column, term string) squirrel.Sqlizer {
	return squirrel.ILike{column: "%" + term + "%"}
}

func (Postgres) TableCount(tables []string) squirrel.SelectBuilder {
	return squirrel.Select("COUNT(*)").
		From("information_schema.tables").
		Where("table_schema = current_schema()").
		Where(squirrel.Expr("table_name = ANY(?)", tables))
}

func (Postgres) SupportsSnapshots() bool { return true }

func (Postgres) Schema() []string { return postgresSchema }

type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder() squirrel.PlaceholderFormat { return squirrel.Question }

func (SQLite) InList(column string, values []string) squirrel.Sqlizer {
	return squirrel.Eq{column: values}
}

func (SQLite) SinceMonths(column string, months int) squirrel.Sqlizer {
	return squirrel.Expr(column+" >= date('now', ?)", fmt.Sprintf("-%d months", months))
}

// LIKE is already case-insensitive for ASCII in sqlite.
func (SQLite) ContainsFold(column, term string) squirrel.Sqlizer {
	return squirrel.Like{column: "%" + term + "%"}
}

func (SQLite) TableCount(tables []string) squirrel.SelectBuilder {
	return squirrel.Select("COUNT(*)").
		From("sqlite_master").
		Where(squirrel.Eq{"type": "table", "name": tables})
}

func (SQLite) SupportsSnapshots() bool { return false }

func (SQLite) Schema() []string { return sqliteSchema }
