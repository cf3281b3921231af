package store_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/ougirez/areametrics/internal/pkg/store"
	"github.com/ougirez/areametrics/internal/pkg/store/xdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// pgModel stands in for postgres: one advisory lock, one materialized view and a statement log.
type pgModel struct {
	advisory sync.Mutex

	mu     sync.Mutex
	view   bool
	log    []string
	leaked int
}

func (m *pgModel) record(stmt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, stmt)
}

func (m *pgModel) statements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}

func (m *pgModel) setView(exists bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = exists
}

func (m *pgModel) hasView() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

func classify(query string) string {
	switch {
	case strings.Contains(query, "pg_advisory_xact_lock"):
		return "xact lock"
	case strings.Contains(query, "pg_advisory_lock"):
		return "session lock"
	case strings.Contains(query, "pg_advisory_unlock"):
		return "unlock"
	case strings.HasPrefix(query, "DROP MATERIALIZED VIEW"):
		return "drop"
	case strings.HasPrefix(query, "CREATE MATERIALIZED VIEW"):
		return "create"
	case strings.HasPrefix(query, "CREATE UNIQUE INDEX"):
		return "index"
	case strings.HasPrefix(query, "REFRESH MATERIALIZED VIEW CONCURRENTLY"):
		return "refresh concurrently"
	case strings.HasPrefix(query, "REFRESH MATERIALIZED VIEW"):
		return "refresh"
	case strings.HasPrefix(query, "INSERT INTO metric_snapshot_state"):
		return "stamp"
	default:
		return query
	}
}

type fakeQuerier struct {
	m    *pgModel
	held *bool
}

func (q *fakeQuerier) Getx(_ context.Context, dst interface{}, sqlizer squirrel.Sqlizer) error {
	query, _, err := sqlizer.ToSql()
	if err != nil {
		return err
	}
	switch {
	case strings.Contains(query, "pg_matviews"):
		var count int64
		if q.m.hasView() {
			count = 1
		}
		*dst.(*int64) = count
	case strings.Contains(query, "clock_timestamp"):
		*dst.(*time.Time) = time.Now()
	default:
		return errors.New("unexpected query: " + query)
	}
	return nil
}

func (q *fakeQuerier) Selectx(context.Context, interface{}, squirrel.Sqlizer) error {
	return errors.New("not supported")
}

func (q *fakeQuerier) Execx(ctx context.Context, sqlizer squirrel.Sqlizer) (int64, error) {
	query, args, err := sqlizer.ToSql()
	if err != nil {
		return 0, err
	}
	return q.ExecRaw(ctx, query, args...)
}

func (q *fakeQuerier) ExecRaw(_ context.Context, query string, _ ...interface{}) (int64, error) {
	stmt := classify(query)
	switch stmt {
	case "xact lock", "session lock":
		q.m.advisory.Lock()
		*q.held = true
	case "unlock":
		*q.held = false
		q.m.advisory.Unlock()
	case "drop":
		q.m.setView(false)
		// widen the window in which the view is gone
		time.Sleep(time.Millisecond)
	case "create":
		q.m.setView(true)
	case "refresh", "refresh concurrently":
		if !q.m.hasView() {
			return 0, errors.New(`relation "area_metric_latest_mv" does not exist`)
		}
	}
	q.m.record(stmt)
	return 0, nil
}

type fakePool struct {
	fakeQuerier
}

func newFakePool(view bool) (*fakePool, *pgModel) {
	m := &pgModel{view: view}
	var held bool
	return &fakePool{fakeQuerier{m: m, held: &held}}, m
}

// Tx releases a transaction-scoped advisory lock when fn returns.
func (p *fakePool) Tx(_ context.Context, fn func(q xdb.Querier) error) error {
	var held bool
	err := fn(&fakeQuerier{m: p.m, held: &held})
	if held {
		p.m.advisory.Unlock()
	}
	return err
}

// Conn counts session locks that fn forgot to release.
func (p *fakePool) Conn(_ context.Context, fn func(q xdb.Querier) error) error {
	var held bool
	err := fn(&fakeQuerier{m: p.m, held: &held})
	if held {
		p.m.mu.Lock()
		p.m.leaked++
		p.m.mu.Unlock()
		p.m.advisory.Unlock()
	}
	return err
}

func (p *fakePool) Ping(context.Context) error { return nil }
func (p *fakePool) Driver() string             { return "postgres" }
func (p *fakePool) Close()                     {}

func TestRefreshSnapshotHoldsAdvisoryLock(t *testing.T) {
	pool, m := newFakePool(true)
	st := store.NewStore(pool, store.Postgres{})

	require.NoError(t, st.RefreshSnapshot(context.Background(), true))
	assert.Equal(t, []string{"session lock", "refresh concurrently", "stamp", "unlock"}, m.statements())

	m.log = nil
	require.NoError(t, st.RefreshSnapshot(context.Background(), false))
	assert.Equal(t, []string{"session lock", "refresh", "stamp", "unlock"}, m.statements())
	assert.Zero(t, m.leaked)
}

func TestRefreshSnapshotRebuildsDroppedView(t *testing.T) {
	pool, m := newFakePool(false)
	st := store.NewStore(pool, store.Postgres{})

	require.NoError(t, st.RefreshSnapshot(context.Background(), true))
	assert.Equal(t, []string{"session lock", "create", "index", "stamp", "unlock"}, m.statements())
	assert.True(t, m.hasView())
}

func TestRefreshSnapshotRacingRecreate(t *testing.T) {
	pool, m := newFakePool(true)
	st := store.NewStore(pool, store.Postgres{})
	ctx := context.Background()

	var eg errgroup.Group
	for i := 0; i < 8; i++ {
		recreate := i%2 == 0
		eg.Go(func() error {
			for j := 0; j < 10; j++ {
				if recreate {
					if err := st.CreateSnapshot(ctx, true); err != nil {
						return err
					}
					continue
				}
				if err := st.RefreshSnapshot(ctx, true); err != nil {
					return err
				}
			}
			return nil
		})
	}

	require.NoError(t, eg.Wait())
	assert.True(t, m.hasView())
	assert.Zero(t, m.leaked)
}
