// Package xdb holds the contract shared by the pgx and database/sql pools: squirrel builders in,
// scany-scanned structs out, every call bounded by a query timeout.
package xdb

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/metrics"
)

type Querier interface {
	Getx(ctx context.Context, dst interface{}, sqlizer squirrel.Sqlizer) error
	Selectx(ctx context.Context, dst interface{}, sqlizer squirrel.Sqlizer) error
	Execx(ctx context.Context, sqlizer squirrel.Sqlizer) (int64, error)
	// ExecRaw runs a statement that is not built with squirrel (DDL, REFRESH).
	ExecRaw(ctx context.Context, query string, args ...interface{}) (int64, error)
}

type Pool interface {
	Querier
	// Tx runs fn inside one transaction; fn must only use the Querier it is given.
	Tx(ctx context.Context, fn func(q Querier) error) error
	// Conn runs fn on one dedicated connection outside any transaction, so session state such as
	// advisory locks stays with fn's statements.
	Conn(ctx context.Context, fn func(q Querier) error) error
	Ping(ctx context.Context) error
	Driver() string
	Close()
}

// WithQueryTimeout bounds ctx by timeout unless the caller already set a deadline.
func WithQueryTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Unavailable reports deadline and connectivity faults as constants.ErrStoreUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return constants.ErrStoreUnavailable.Wrap(err)
	}
	return err
}

// Observe records the duration of one store call; no-rows results do not count as errors.
func Observe(driver, op string, start time.Time, err error) {
	metrics.StoreQueryDurationMs.WithLabelValues(driver, op).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil && !errors.Is(err, constants.ErrDBNotFound) {
		metrics.StoreErrorsTotal.WithLabelValues(driver, op).Inc()
	}
}
