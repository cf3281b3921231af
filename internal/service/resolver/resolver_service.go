package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/metrics"
	"github.com/ougirez/areametrics/internal/pkg/store"
)

// Resolver maps a caller-supplied reference to a canonical id. found is false, with a nil error,
// when nothing matches.
type Resolver interface {
	Resolve(ctx context.Context, level domain.Level, ref string) (id string, found bool, err error)
}

// RuleResolver also reports which rule matched, so decorators can treat fallbacks differently.
type RuleResolver interface {
	ResolveRule(ctx context.Context, level domain.Level, ref string) (id, rule string, found bool, err error)
}

// Rules, in the order they are tried.
const (
	RuleNumericID     = "numeric_id"
	RuleID            = "id"
	RuleCode          = "code"
	RuleAlias         = "alias"
	RuleName          = "name"
	RuleSingleCountry = "single_country"
)

type Finder interface {
	FindID(ctx context.Context, level domain.Level, opts store.FindIDOpts) (string, error)
	CountLocations(ctx context.Context, level domain.Level) (int64, error)
}

type Config struct {
	// SingleCountryFallback resolves any unmatched country reference to the only country row, if
	// exactly one exists.
	SingleCountryFallback bool
	// Aliases are merged over the built-in tables, keyed by level name.
	Aliases map[string]map[string]string
}

type levelSpec struct {
	hasCode bool
	aliases map[string]string
}

type Service struct {
	finder                Finder
	levels                map[domain.Level]*levelSpec
	singleCountryFallback bool
}

func NewResolverService(finder Finder, cfg Config) *Service {
	levels := make(map[domain.Level]*levelSpec, len(domain.Levels))
	for _, level := range domain.Levels {
		spec := &levelSpec{
			hasCode: level == domain.LevelCountry,
			aliases: make(map[string]string, len(builtinAliases[level])),
		}
		for code, name := range builtinAliases[level] {
			spec.aliases[code] = name
		}
		levels[level] = spec
	}

	for levelName, aliases := range cfg.Aliases {
		level, err := domain.ParseLevel(levelName)
		if err != nil {
			logger.Warnf(context.Background(), "resolver aliases: %s", err.Error())
			continue
		}
		for code, name := range aliases {
			levels[level].aliases[strings.ToUpper(strings.TrimSpace(code))] = name
		}
	}

	return &Service{
		finder:                finder,
		levels:                levels,
		singleCountryFallback: cfg.SingleCountryFallback,
	}
}

func (s *Service) Resolve(ctx context.Context, level domain.Level, ref string) (string, bool, error) {
	id, _, found, err := s.ResolveRule(ctx, level, ref)
	return id, found, err
}

func (s *Service) ResolveRule(ctx context.Context, level domain.Level, ref string) (string, string, bool, error) {
	spec, ok := s.levels[level]
	if !ok {
		return "", "", false, constants.ErrBadRequest.Withf("unknown level %q", level)
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", false, nil
	}

	digits := isDigits(ref)
	if digits {
		if n, err := strconv.ParseUint(ref, 10, 64); err == nil {
			canonical := strconv.FormatUint(n, 10)
			if id, found, err := s.find(ctx, level, RuleNumericID, store.FindIDOpts{ID: &canonical}); err != nil || found {
				return id, RuleNumericID, found, err
			}
		}
	}

	if id, found, err := s.find(ctx, level, RuleID, store.FindIDOpts{IDFold: &ref}); err != nil || found {
		return id, RuleID, found, err
	}

	// A numeric reference names a row id and nothing else.
	if digits {
		s.miss(level)
		return "", "", false, nil
	}

	if spec.hasCode {
		if id, found, err := s.find(ctx, level, RuleCode, store.FindIDOpts{Code: &ref}); err != nil || found {
			return id, RuleCode, found, err
		}
	}

	if target, ok := spec.aliases[strings.ToUpper(ref)]; ok {
		if id, found, err := s.find(ctx, level, RuleAlias, store.FindIDOpts{Name: &target}); err != nil || found {
			return id, RuleAlias, found, err
		}
	}

	if id, found, err := s.find(ctx, level, RuleName, store.FindIDOpts{Name: &ref}); err != nil || found {
		return id, RuleName, found, err
	}

	if level == domain.LevelCountry && s.singleCountryFallback {
		count, err := s.finder.CountLocations(ctx, level)
		if err != nil {
			return "", "", false, fmt.Errorf("finder.CountLocations: %w", err)
		}
		if count == 1 {
			id, found, err := s.find(ctx, level, RuleSingleCountry, store.FindIDOpts{})
			return id, RuleSingleCountry, found, err
		}
	}

	s.miss(level)
	return "", "", false, nil
}

func (s *Service) find(ctx context.Context, level domain.Level, rule string, opts store.FindIDOpts) (string, bool, error) {
	id, err := s.finder.FindID(ctx, level, opts)
	if errors.Is(err, constants.ErrDBNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("finder.FindID, level-%s, rule-%s: %w", level, rule, err)
	}

	metrics.ResolverLookupsTotal.WithLabelValues(string(level), rule).Inc()
	return id, true, nil
}

func (s *Service) miss(level domain.Level) {
	metrics.ResolverLookupsTotal.WithLabelValues(string(level), "miss").Inc()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
