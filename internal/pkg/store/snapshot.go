package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/store/xdb"
)

// The snapshot is a postgres materialized view holding the latest fact per (area, metric). Metric
// catalog columns are joined at read time so catalog edits never need a refresh.
const (
	snapshotDefinition = `CREATE MATERIALIZED VIEW IF NOT EXISTS ` + viewLatestSnapshot + ` AS
SELECT area_id, metric_id, period_start, value_numeric, value_text, value_json, source, quality_score, created_at
FROM (
	SELECT v.*, ROW_NUMBER() OVER (PARTITION BY v.area_id, v.metric_id ORDER BY ` + latestOrder + `) AS rn
	FROM ` + tableMetricValues + ` v
) ranked
WHERE rn = 1
WITH DATA`
	snapshotIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ` + viewLatestSnapshot + `_key ON ` + viewLatestSnapshot + ` (area_id, metric_id)`
	snapshotDrop  = `DROP MATERIALIZED VIEW IF EXISTS ` + viewLatestSnapshot
	snapshotLock  = `SELECT pg_advisory_xact_lock(hashtext('` + viewLatestSnapshot + `'))`
	snapshotStamp = `INSERT INTO ` + tableSnapshotState + ` (name, refreshed_at) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET refreshed_at = GREATEST(` + tableSnapshotState + `.refreshed_at, excluded.refreshed_at)`
)

// The session lock shares the key of snapshotLock; REFRESH CONCURRENTLY cannot run in a transaction.
const (
	snapshotSessionLock   = `SELECT pg_advisory_lock(hashtext('` + viewLatestSnapshot + `'))`
	snapshotSessionUnlock = `SELECT pg_advisory_unlock(hashtext('` + viewLatestSnapshot + `'))`
)

func (s *store) requireSnapshots() error {
	if !s.dialect.SupportsSnapshots() {
		return constants.ErrSnapshotUnsupported
	}
	return nil
}

func (s *store) SnapshotExists(ctx context.Context) (bool, error) {
	if err := s.requireSnapshots(); err != nil {
		return false, err
	}

	exists, err := s.snapshotExists(ctx, s.pool)
	if err != nil {
		return false, fmt.Errorf("store.SnapshotExists: %w", err)
	}
	return exists, nil
}

func (s *store) snapshotExists(ctx context.Context, q xdb.Querier) (bool, error) {
	query := s.builder().Select("COUNT(*)").
		From("pg_matviews").
		Where("schemaname = current_schema()").
		Where(sq.Eq{"matviewname": viewLatestSnapshot})

	var count int64
	if err := q.Getx(ctx, &count, query); err != nil {
		return false, wrapErr(err)
	}
	return count > 0, nil
}

// SnapshotStale reports whether any fact was recorded after the last successful refresh. A snapshot
// that was never stamped is stale. The check is a range scan on the created_at index.
func (s *store) SnapshotStale(ctx context.Context) (bool, error) {
	if err := s.requireSnapshots(); err != nil {
		return false, err
	}

	query := s.builder().Select().Column(sq.Expr(`EXISTS (
	SELECT 1 FROM `+tableMetricValues+` v
	WHERE v.created_at > COALESCE(
		(SELECT st.refreshed_at FROM `+tableSnapshotState+` st WHERE st.name = ?),
		'-infinity'::timestamptz
	)
) AS stale`, viewLatestSnapshot))

	var stale bool
	if err := s.pool.Getx(ctx, &stale, query); err != nil {
		return false, fmt.Errorf("store.SnapshotStale: %w", wrapErr(err))
	}

	return stale, nil
}

// CreateSnapshot builds the view, optionally dropping the old definition first. The swap happens in
// one transaction so readers see either the old view or the new one.
func (s *store) CreateSnapshot(ctx context.Context, drop bool) error {
	if err := s.requireSnapshots(); err != nil {
		return err
	}

	err := s.pool.Tx(ctx, func(q xdb.Querier) error {
		if _, err := q.ExecRaw(ctx, snapshotLock); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
		if drop {
			if _, err := q.ExecRaw(ctx, snapshotDrop); err != nil {
				return fmt.Errorf("drop: %w", err)
			}
		}

		stamp, err := clockTimestamp(ctx, q)
		if err != nil {
			return err
		}

		if _, err = q.ExecRaw(ctx, snapshotDefinition); err != nil {
			return fmt.Errorf("create: %w", err)
		}
		if _, err = q.ExecRaw(ctx, snapshotIndex); err != nil {
			return fmt.Errorf("index: %w", err)
		}
		if _, err = q.ExecRaw(ctx, snapshotStamp, viewLatestSnapshot, stamp); err != nil {
			return fmt.Errorf("stamp: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store.CreateSnapshot: %w", err)
	}

	return nil
}

// RefreshSnapshot recomputes the view. It holds the same advisory lock as CreateSnapshot, so a
// refresh racing a recreate runs after it instead of failing on the dropped view; a view that is
// gone by the time the lock is held is created again. The state stamp is taken before the refresh
// starts so facts landing during the refresh still mark the snapshot stale.
func (s *store) RefreshSnapshot(ctx context.Context, concurrent bool) error {
	if err := s.requireSnapshots(); err != nil {
		return err
	}

	err := s.pool.Conn(ctx, func(q xdb.Querier) error {
		if _, err := q.ExecRaw(ctx, snapshotSessionLock); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
		defer func() {
			if _, err := q.ExecRaw(context.WithoutCancel(ctx), snapshotSessionUnlock); err != nil {
				logger.Warnf(ctx, "snapshot advisory unlock: %s", err.Error())
			}
		}()

		exists, err := s.snapshotExists(ctx, q)
		if err != nil {
			return err
		}

		stamp, err := clockTimestamp(ctx, q)
		if err != nil {
			return err
		}

		if exists {
			stmt := "REFRESH MATERIALIZED VIEW " + viewLatestSnapshot
			if concurrent {
				stmt = "REFRESH MATERIALIZED VIEW CONCURRENTLY " + viewLatestSnapshot
			}
			if _, err = q.ExecRaw(ctx, stmt); err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
		} else {
			if _, err = q.ExecRaw(ctx, snapshotDefinition); err != nil {
				return fmt.Errorf("create: %w", err)
			}
			if _, err = q.ExecRaw(ctx, snapshotIndex); err != nil {
				return fmt.Errorf("index: %w", err)
			}
		}

		if _, err = q.ExecRaw(ctx, snapshotStamp, viewLatestSnapshot, stamp); err != nil {
			return fmt.Errorf("stamp: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store.RefreshSnapshot: %w", err)
	}

	return nil
}

func clockTimestamp(ctx context.Context, q xdb.Querier) (time.Time, error) {
	var stamp time.Time
	if err := q.Getx(ctx, &stamp, sq.Select("clock_timestamp()")); err != nil {
		return time.Time{}, fmt.Errorf("clock_timestamp: %w", err)
	}
	return stamp, nil
}

func (s *store) SnapshotLatestMetrics(ctx context.Context, opts LatestMetricsOpts) ([]*domain.LatestMetric, error) {
	if err := s.requireSnapshots(); err != nil {
		return nil, err
	}

	selected := []*domain.LatestMetric{}
	if len(opts.AreaIDs) == 0 {
		return selected, nil
	}

	query := s.builder().Select(
		"v.area_id", "m.code", "m.name", "m.unit", "m.category", "v.period_start",
		"v.value_numeric", "v.value_text", "v.value_json", "v.source", "v.quality_score",
	).
		From(viewLatestSnapshot + " v").
		Join(tableMetrics + " m ON m.id = v.metric_id").
		Where(s.dialect.InList("v.area_id", opts.AreaIDs)).
		OrderBy("v.area_id", "m.code")

	if len(opts.Codes) > 0 {
		query = query.Where(s.dialect.InList("m.code", opts.Codes))
	}

	if err := s.pool.Selectx(ctx, &selected, query); err != nil {
		return nil, fmt.Errorf("store.SnapshotLatestMetrics: %w", err)
	}

	return selected, nil
}
