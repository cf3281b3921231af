package acceleration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/metrics"
	"github.com/ougirez/areametrics/internal/pkg/store"
)

type State string

const (
	StateUnsupported State = "unsupported"
	StateMissing     State = "missing"
	StateStale       State = "stale"
	StateFresh       State = "fresh"
)

const (
	ActionCreated                  = "created"
	ActionRecreated                = "recreated"
	ActionRefreshedConcurrent      = "refreshed_concurrent"
	ActionRefreshedNonConcurrent   = "refreshed_non_concurrent"
	ActionRefreshedBlockedFallback = "refreshed_non_concurrent_fallback"
)

const (
	SourceSnapshot = "snapshot"
	SourceLive     = "live"
)

type Store interface {
	Dialect() store.Dialect
	LatestMetrics(ctx context.Context, opts store.LatestMetricsOpts) ([]*domain.LatestMetric, error)
	SnapshotExists(ctx context.Context) (bool, error)
	SnapshotStale(ctx context.Context) (bool, error)
	CreateSnapshot(ctx context.Context, drop bool) error
	RefreshSnapshot(ctx context.Context, concurrent bool) error
	SnapshotLatestMetrics(ctx context.Context, opts store.LatestMetricsOpts) ([]*domain.LatestMetric, error)
}

type Config struct {
	// Concurrent refreshes without blocking readers when the backend allows it.
	Concurrent bool
	// Timeout bounds a whole refresh.
	Timeout time.Duration
	// StateTTL is how long reads trust the last check that the snapshot exists. Staleness is
	// checked on every read regardless.
	StateTTL time.Duration
}

type RefreshOpts struct {
	Recreate   bool
	Concurrent *bool
}

// Service is the acceleration layer over the latest-metric snapshot.
type Service struct {
	store Store
	cfg   Config
	now   func() time.Time

	existsMx  sync.Mutex
	exists    bool
	checkedAt time.Time
}

func NewAccelerationService(store Store, cfg Config) *Service {
	return &Service{store: store, cfg: cfg, now: time.Now}
}

func (s *Service) State(ctx context.Context) (State, error) {
	return s.state(ctx, false)
}

func (s *Service) state(ctx context.Context, cached bool) (State, error) {
	if !s.store.Dialect().SupportsSnapshots() {
		return StateUnsupported, nil
	}

	exists, err := s.snapshotExists(ctx, cached)
	if err != nil {
		return "", err
	}
	if !exists {
		return StateMissing, nil
	}

	stale, err := s.store.SnapshotStale(ctx)
	if err != nil {
		return "", fmt.Errorf("store.SnapshotStale: %w", err)
	}
	if stale {
		return StateStale, nil
	}

	return StateFresh, nil
}

// snapshotExists reuses a check younger than StateTTL when cached is set. The view only appears or
// disappears on create or recreate, and a read from a view that has vanished falls back to live.
func (s *Service) snapshotExists(ctx context.Context, cached bool) (bool, error) {
	if cached && s.cfg.StateTTL > 0 {
		s.existsMx.Lock()
		exists, fresh := s.exists, !s.checkedAt.IsZero() && s.now().Sub(s.checkedAt) < s.cfg.StateTTL
		s.existsMx.Unlock()
		if fresh {
			return exists, nil
		}
	}

	exists, err := s.store.SnapshotExists(ctx)
	if err != nil {
		return false, fmt.Errorf("store.SnapshotExists: %w", err)
	}

	s.existsMx.Lock()
	s.exists, s.checkedAt = exists, s.now()
	s.existsMx.Unlock()

	return exists, nil
}

// Refresh brings the snapshot to the fresh state. A missing snapshot is created; recreate drops and
// redefines an existing one. A failed refresh leaves the previous snapshot in place.
func (s *Service) Refresh(ctx context.Context, opts RefreshOpts) (*domain.RefreshResult, error) {
	if !s.store.Dialect().SupportsSnapshots() {
		return nil, constants.ErrSnapshotUnsupported
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	exists, err := s.snapshotExists(ctx, false)
	if err != nil {
		return nil, err
	}

	var action string
	switch {
	case !exists || opts.Recreate:
		if err = s.store.CreateSnapshot(ctx, exists); err != nil {
			logger.Errorf(ctx, "store.CreateSnapshot: %s", err.Error())
			return nil, constants.ErrRefreshFailed.Wrap(err)
		}
		action = ActionCreated
		if exists {
			action = ActionRecreated
		}
	default:
		concurrent := s.cfg.Concurrent
		if opts.Concurrent != nil {
			concurrent = *opts.Concurrent
		}
		if action, err = s.refresh(ctx, concurrent); err != nil {
			return nil, err
		}
	}
	metrics.SnapshotActionsTotal.WithLabelValues(action).Inc()
	logger.Infof(ctx, "snapshot refresh: %s", action)

	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.RefreshResult{Actions: []string{action}, State: string(state)}, nil
}

func (s *Service) refresh(ctx context.Context, concurrent bool) (string, error) {
	if !concurrent {
		if err := s.store.RefreshSnapshot(ctx, false); err != nil {
			logger.Errorf(ctx, "store.RefreshSnapshot: %s", err.Error())
			return "", constants.ErrRefreshFailed.Wrap(err)
		}
		return ActionRefreshedNonConcurrent, nil
	}

	err := s.store.RefreshSnapshot(ctx, true)
	if err == nil {
		return ActionRefreshedConcurrent, nil
	}
	logger.Warnf(ctx, "concurrent refresh failed, falling back to blocking refresh: %s", err.Error())

	if err = s.store.RefreshSnapshot(ctx, false); err != nil {
		logger.Errorf(ctx, "store.RefreshSnapshot: %s", err.Error())
		return "", constants.ErrRefreshFailed.Wrap(err)
	}
	return ActionRefreshedBlockedFallback, nil
}

// LatestMetrics serves from the snapshot only when it is fresh and from the live tables otherwise.
func (s *Service) LatestMetrics(ctx context.Context, opts store.LatestMetricsOpts) ([]*domain.LatestMetric, error) {
	rows, _, err := s.LatestMetricsWithSource(ctx, opts)
	return rows, err
}

func (s *Service) LatestMetricsWithSource(ctx context.Context, opts store.LatestMetricsOpts) ([]*domain.LatestMetric, string, error) {
	state, err := s.state(ctx, true)
	if err != nil {
		logger.Warnf(ctx, "snapshot state probe failed, reading live: %s", err.Error())
	}

	if state == StateFresh {
		rows, err := s.store.SnapshotLatestMetrics(ctx, opts)
		if err == nil {
			metrics.SnapshotReadsTotal.WithLabelValues(SourceSnapshot).Inc()
			return rows, SourceSnapshot, nil
		}
		logger.Warnf(ctx, "snapshot read failed, reading live: %s", err.Error())
	}

	rows, err := s.store.LatestMetrics(ctx, opts)
	if err != nil {
		return nil, "", fmt.Errorf("store.LatestMetrics: %w", err)
	}
	metrics.SnapshotReadsTotal.WithLabelValues(SourceLive).Inc()
	return rows, SourceLive, nil
}
