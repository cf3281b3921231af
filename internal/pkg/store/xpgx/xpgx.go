package xpgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/store/xdb"
)

const DriverName = "postgres"

type Config struct {
	DSN            string
	MaxConns       int
	QueryTimeout   time.Duration
	ConnectRetries int
}

type conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type querier struct {
	conn         conn
	queryTimeout time.Duration
}

type Pool struct {
	querier
	pool *pgxpool.Pool
}

// New opens a pgxpool and pings it with exponential backoff.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	pgCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	if cfg.MaxConns > 0 {
		pgCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.ConnectRetries)), ctx)
	err = backoff.RetryNotify(func() error {
		return pool.Ping(ctx)
	}, b, func(err error, next time.Duration) {
		logger.Warnf(ctx, "postgres ping failed, retrying in %s: %s", next, err.Error())
	})
	if err != nil {
		pool.Close()
		return nil, constants.ErrStoreUnavailable.Wrap(fmt.Errorf("pool.Ping: %w", err))
	}

	return &Pool{
		querier: querier{conn: pool, queryTimeout: cfg.QueryTimeout},
		pool:    pool,
	}, nil
}

func (p *Pool) Driver() string {
	return DriverName
}

func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := xdb.WithQueryTimeout(ctx, p.queryTimeout)
	defer cancel()
	return mapErr(p.pool.Ping(ctx))
}

func (p *Pool) Close() {
	p.pool.Close()
}

func (p *Pool) Tx(ctx context.Context, fn func(q xdb.Querier) error) error {
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&querier{conn: tx, queryTimeout: p.queryTimeout})
	})
	return mapErr(err)
}

func (p *Pool) Conn(ctx context.Context, fn func(q xdb.Querier) error) error {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return mapErr(fmt.Errorf("pool.Acquire: %w", err))
	}
	defer c.Release()

	return fn(&querier{conn: c, queryTimeout: p.queryTimeout})
}

func (q *querier) Getx(ctx context.Context, dst interface{}, sqlizer squirrel.Sqlizer) error {
	query, args, err := sqlizer.ToSql()
	if err != nil {
		return fmt.Errorf("ToSql: %w", err)
	}
	ctx, cancel := xdb.WithQueryTimeout(ctx, q.queryTimeout)
	defer cancel()
	start := time.Now()
	err = mapErr(pgxscan.Get(ctx, q.conn, dst, query, args...))
	xdb.Observe(DriverName, "get", start, err)
	return err
}

func (q *querier) Selectx(ctx context.Context, dst interface{}, sqlizer squirrel.Sqlizer) error {
	query, args, err := sqlizer.ToSql()
	if err != nil {
		return fmt.Errorf("ToSql: %w", err)
	}
	ctx, cancel := xdb.WithQueryTimeout(ctx, q.queryTimeout)
	defer cancel()
	start := time.Now()
	err = mapErr(pgxscan.Select(ctx, q.conn, dst, query, args...))
	xdb.Observe(DriverName, "select", start, err)
	return err
}

func (q *querier) Execx(ctx context.Context, sqlizer squirrel.Sqlizer) (int64, error) {
	query, args, err := sqlizer.ToSql()
	if err != nil {
		return 0, fmt.Errorf("ToSql: %w", err)
	}
	return q.ExecRaw(ctx, query, args...)
}

func (q *querier) ExecRaw(ctx context.Context, query string, args ...interface{}) (int64, error) {
	ctx, cancel := xdb.WithQueryTimeout(ctx, q.queryTimeout)
	defer cancel()
	start := time.Now()
	tag, err := q.conn.Exec(ctx, query, args...)
	err = mapErr(err)
	xdb.Observe(DriverName, "exec", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return constants.ErrDBNotFound
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return constants.ErrStoreUnavailable.Wrap(err)
	}
	return xdb.Unavailable(err)
}
