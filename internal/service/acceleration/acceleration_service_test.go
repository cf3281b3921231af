package acceleration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/store"
	"github.com/ougirez/areametrics/internal/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshotStore simulates a postgres snapshot without a database.
type snapshotStore struct {
	exists        bool
	stale         bool
	concurrentErr error
	refreshErr    error
	refreshes     []bool
	creates       []bool
	live          []*domain.LatestMetric
	snapshot      []*domain.LatestMetric
	existsCalls   int
	staleCalls    int
}

func (s *snapshotStore) Dialect() store.Dialect { return store.Postgres{} }

func (s *snapshotStore) LatestMetrics(context.Context, store.LatestMetricsOpts) ([]*domain.LatestMetric, error) {
	return s.live, nil
}

func (s *snapshotStore) SnapshotExists(context.Context) (bool, error) {
	s.existsCalls++
	return s.exists, nil
}

func (s *snapshotStore) SnapshotStale(context.Context) (bool, error) {
	s.staleCalls++
	return s.stale, nil
}

func (s *snapshotStore) CreateSnapshot(_ context.Context, drop bool) error {
	s.creates = append(s.creates, drop)
	s.exists, s.stale = true, false
	return nil
}

func (s *snapshotStore) RefreshSnapshot(_ context.Context, concurrent bool) error {
	s.refreshes = append(s.refreshes, concurrent)
	if concurrent && s.concurrentErr != nil {
		return s.concurrentErr
	}
	if s.refreshErr != nil {
		return s.refreshErr
	}
	s.stale = false
	return nil
}

func (s *snapshotStore) SnapshotLatestMetrics(context.Context, store.LatestMetricsOpts) ([]*domain.LatestMetric, error) {
	return s.snapshot, nil
}

func TestStateTransitions(t *testing.T) {
	ctx := context.Background()
	st := &snapshotStore{}
	svc := NewAccelerationService(st, Config{Concurrent: true})

	state, err := svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateMissing, state)

	st.exists, st.stale = true, true
	state, err = svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateStale, state)

	st.stale = false
	state, err = svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateFresh, state)
}

func TestRefreshCreatesMissingSnapshot(t *testing.T) {
	st := &snapshotStore{}
	svc := NewAccelerationService(st, Config{Concurrent: true})

	result, err := svc.Refresh(context.Background(), RefreshOpts{})
	require.NoError(t, err)
	assert.Equal(t, []string{ActionCreated}, result.Actions)
	assert.Equal(t, string(StateFresh), result.State)
	assert.Equal(t, []bool{false}, st.creates)
}

func TestRefreshRecreate(t *testing.T) {
	st := &snapshotStore{exists: true, stale: true}
	svc := NewAccelerationService(st, Config{Concurrent: true})

	result, err := svc.Refresh(context.Background(), RefreshOpts{Recreate: true})
	require.NoError(t, err)
	assert.Equal(t, []string{ActionRecreated}, result.Actions)
	assert.Equal(t, []bool{true}, st.creates)
	assert.Empty(t, st.refreshes)
}

func TestRefreshConcurrentFallback(t *testing.T) {
	st := &snapshotStore{exists: true, stale: true, concurrentErr: errors.New("cannot refresh concurrently")}
	svc := NewAccelerationService(st, Config{Concurrent: true})

	result, err := svc.Refresh(context.Background(), RefreshOpts{})
	require.NoError(t, err)
	assert.Equal(t, []string{ActionRefreshedBlockedFallback}, result.Actions)
	assert.Equal(t, []bool{true, false}, st.refreshes)
	assert.Equal(t, string(StateFresh), result.State)
}

func TestRefreshNonConcurrentOverride(t *testing.T) {
	st := &snapshotStore{exists: true, stale: true}
	svc := NewAccelerationService(st, Config{Concurrent: true})

	concurrent := false
	result, err := svc.Refresh(context.Background(), RefreshOpts{Concurrent: &concurrent})
	require.NoError(t, err)
	assert.Equal(t, []string{ActionRefreshedNonConcurrent}, result.Actions)
	assert.Equal(t, []bool{false}, st.refreshes)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	st := &snapshotStore{exists: true, stale: true, refreshErr: errors.New("disk full")}
	svc := NewAccelerationService(st, Config{Concurrent: false})

	_, err := svc.Refresh(context.Background(), RefreshOpts{})
	assert.ErrorIs(t, err, constants.ErrRefreshFailed)
	assert.True(t, st.exists)
}

func TestLatestMetricsSource(t *testing.T) {
	ctx := context.Background()
	st := &snapshotStore{
		exists:   true,
		stale:    true,
		live:     []*domain.LatestMetric{{Code: "live"}},
		snapshot: []*domain.LatestMetric{{Code: "snapshot"}},
	}
	svc := NewAccelerationService(st, Config{})

	rows, source, err := svc.LatestMetricsWithSource(ctx, store.LatestMetricsOpts{AreaIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, SourceLive, source)
	assert.Equal(t, "live", rows[0].Code)

	st.stale = false
	rows, source, err = svc.LatestMetricsWithSource(ctx, store.LatestMetricsOpts{AreaIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, SourceSnapshot, source)
	assert.Equal(t, "snapshot", rows[0].Code)
}

func TestLatestMetricsReusesExistenceCheck(t *testing.T) {
	ctx := context.Background()
	st := &snapshotStore{
		exists:   true,
		live:     []*domain.LatestMetric{{Code: "live"}},
		snapshot: []*domain.LatestMetric{{Code: "snapshot"}},
	}
	svc := NewAccelerationService(st, Config{StateTTL: time.Minute})
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	read := func() string {
		t.Helper()
		_, source, err := svc.LatestMetricsWithSource(ctx, store.LatestMetricsOpts{AreaIDs: []string{"a"}})
		require.NoError(t, err)
		return source
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, SourceSnapshot, read())
	}
	assert.Equal(t, 1, st.existsCalls)
	assert.Equal(t, 3, st.staleCalls)

	// new facts are noticed on the very next read
	st.stale = true
	assert.Equal(t, SourceLive, read())
	assert.Equal(t, 1, st.existsCalls)

	now = now.Add(time.Minute)
	read()
	assert.Equal(t, 2, st.existsCalls)

	// without a ttl every read checks
	uncached := NewAccelerationService(st, Config{})
	st.existsCalls = 0
	for i := 0; i < 2; i++ {
		_, _, err := uncached.LatestMetricsWithSource(ctx, store.LatestMetricsOpts{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, st.existsCalls)
}

func TestUnsupportedOnSQLite(t *testing.T) {
	ctx := context.Background()
	st := storetest.NewSQLite(t)
	f := storetest.NewFixture(t, st, "Sandton")
	f.Fact(t, st, "Sandton", constants.MetricAvgPrice, "2025-09-01", "3250000")

	svc := NewAccelerationService(st, Config{Concurrent: true})

	state, err := svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnsupported, state)

	_, err = svc.Refresh(ctx, RefreshOpts{})
	assert.ErrorIs(t, err, constants.ErrSnapshotUnsupported)

	rows, source, err := svc.LatestMetricsWithSource(ctx, store.LatestMetricsOpts{AreaIDs: []string{f.AreaIDs["Sandton"]}})
	require.NoError(t, err)
	assert.Equal(t, SourceLive, source)
	require.Len(t, rows, 1)
	assert.Equal(t, "3250000", rows[0].ValueNumeric.Decimal.String())
}
