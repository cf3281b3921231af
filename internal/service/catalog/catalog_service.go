package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/store"
)

// Service is the schema catalog: the hierarchy levels, the metric catalog and a capability probe
// that is evaluated once and then cached.
type Service struct {
	store store.Store

	probeMx   sync.Mutex
	probed    bool
	supported bool
}

func NewCatalogService(store store.Store) *Service {
	return &Service{store: store}
}

// MetricsSupported reports whether the metric tables exist. A failed probe is not cached.
func (s *Service) MetricsSupported(ctx context.Context) (bool, error) {
	s.probeMx.Lock()
	defer s.probeMx.Unlock()

	if s.probed {
		return s.supported, nil
	}

	supported, err := s.store.MetricsSchemaReady(ctx)
	if err != nil {
		return false, fmt.Errorf("store.MetricsSchemaReady: %w", err)
	}

	s.probed = true
	s.supported = supported
	return supported, nil
}

// RequireMetrics returns constants.ErrSchemaUnsupported when the metric tables are absent.
func (s *Service) RequireMetrics(ctx context.Context) error {
	supported, err := s.MetricsSupported(ctx)
	if err != nil {
		return err
	}
	if !supported {
		return constants.ErrSchemaUnsupported
	}
	return nil
}

// Invalidate drops the cached probe, e.g. after migrating the schema in-process.
func (s *Service) Invalidate() {
	s.probeMx.Lock()
	defer s.probeMx.Unlock()
	s.probed = false
}

func (s *Service) Levels() []domain.Level {
	return domain.Levels
}

func (s *Service) ListMetrics(ctx context.Context, onlyActive bool) ([]*domain.Metric, error) {
	if err := s.RequireMetrics(ctx); err != nil {
		return nil, err
	}

	metrics, err := s.store.ListMetrics(ctx, store.ListMetricsOpts{OnlyActive: onlyActive})
	if err != nil {
		return nil, fmt.Errorf("store.ListMetrics: %w", err)
	}

	return metrics, nil
}

// MetricsByCode returns the catalog entries for codes, keyed by code. Unknown codes are absent.
func (s *Service) MetricsByCode(ctx context.Context, codes []string) (map[string]*domain.Metric, error) {
	metrics, err := s.store.ListMetrics(ctx, store.ListMetricsOpts{Codes: codes})
	if err != nil {
		return nil, fmt.Errorf("store.ListMetrics: %w", err)
	}

	byCode := make(map[string]*domain.Metric, len(metrics))
	for _, m := range metrics {
		byCode[m.Code] = m
	}

	return byCode, nil
}

func (s *Service) Driver() string {
	return s.store.Dialect().Name()
}
