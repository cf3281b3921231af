package store

import (
	"context"
	"fmt"

	"github.com/ougirez/areametrics/internal/pkg/logger"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS countries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS provinces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country_id TEXT NOT NULL REFERENCES countries(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		province_id TEXT NOT NULL REFERENCES provinces(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS areas (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		city_id TEXT NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
		area_type TEXT,
		postal_code TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_provinces_country_id ON provinces(country_id)`,
	`CREATE INDEX IF NOT EXISTS idx_cities_province_id ON cities(province_id)`,
	`CREATE INDEX IF NOT EXISTS idx_areas_city_id ON areas(city_id)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		unit TEXT,
		category TEXT,
		data_type TEXT NOT NULL DEFAULT 'numeric',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS area_metric_values (
		id BIGSERIAL PRIMARY KEY,
		area_id TEXT NOT NULL REFERENCES areas(id) ON DELETE CASCADE,
		metric_id BIGINT NOT NULL REFERENCES metrics(id) ON DELETE CASCADE,
		period_start DATE NOT NULL,
		period_end DATE,
		value_numeric NUMERIC,
		value_text TEXT,
		value_json JSONB,
		source TEXT,
		quality_score SMALLINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (area_id, metric_id, period_start)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_area_metric_values_latest
		ON area_metric_values(area_id, metric_id, period_start DESC, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_area_metric_values_created_at ON area_metric_values(created_at)`,
	`CREATE TABLE IF NOT EXISTS metric_snapshot_state (
		name TEXT PRIMARY KEY,
		refreshed_at TIMESTAMPTZ NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS countries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	)`,
	`CREATE TABLE IF NOT EXISTS provinces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country_id TEXT NOT NULL REFERENCES countries(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	)`,
	`CREATE TABLE IF NOT EXISTS cities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		province_id TEXT NOT NULL REFERENCES provinces(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	)`,
	`CREATE TABLE IF NOT EXISTS areas (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		city_id TEXT NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
		area_type TEXT,
		postal_code TEXT,
		latitude REAL,
		longitude REAL,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_provinces_country_id ON provinces(country_id)`,
	`CREATE INDEX IF NOT EXISTS idx_cities_province_id ON cities(province_id)`,
	`CREATE INDEX IF NOT EXISTS idx_areas_city_id ON areas(city_id)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		unit TEXT,
		category TEXT,
		data_type TEXT NOT NULL DEFAULT 'numeric',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	)`,
	`CREATE TABLE IF NOT EXISTS area_metric_values (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		area_id TEXT NOT NULL REFERENCES areas(id) ON DELETE CASCADE,
		metric_id INTEGER NOT NULL REFERENCES metrics(id) ON DELETE CASCADE,
		period_start TEXT NOT NULL,
		period_end TEXT,
		value_numeric TEXT,
		value_text TEXT,
		value_json TEXT,
		source TEXT,
		quality_score INTEGER,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
		UNIQUE (area_id, metric_id, period_start)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_area_metric_values_latest
		ON area_metric_values(area_id, metric_id, period_start DESC, created_at DESC)`,
}

// Migrate creates the hierarchy and metric tables for the store's dialect. It is idempotent.
func (s *store) Migrate(ctx context.Context) error {
	for i, stmt := range s.dialect.Schema() {
		logger.Debugf(ctx, "schema statement %d", i)
		if _, err := s.pool.ExecRaw(ctx, stmt); err != nil {
			return fmt.Errorf("store.Migrate: statement %d: %w", i, err)
		}
	}
	return nil
}

// MetricsSchemaReady reports whether the metric catalog and fact tables exist.
func (s *store) MetricsSchemaReady(ctx context.Context) (bool, error) {
	tables := []string{tableMetrics, tableMetricValues}
	query := s.dialect.TableCount(tables).PlaceholderFormat(s.dialect.Placeholder())

	var count int64
	if err := s.pool.Getx(ctx, &count, query); err != nil {
		return false, fmt.Errorf("store.MetricsSchemaReady: %w", wrapErr(err))
	}
	return count == int64(len(tables)), nil
}
