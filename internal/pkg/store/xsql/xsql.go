// Package xsql is the embedded SQLite pool (modernc.org/sqlite through database/sql).
package xsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/store/xdb"

	_ "modernc.org/sqlite"
)

const DriverName = "sqlite"

type Config struct {
	Path         string
	QueryTimeout time.Duration
}

type conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier struct {
	conn         conn
	queryTimeout time.Duration
}

type Pool struct {
	querier
	db *sql.DB
}

// New opens the database file with WAL journaling and foreign keys on every connection.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	db, err := sql.Open(DriverName, dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// SQLite allows a single writer; one connection serializes writes and refreshes alike.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, constants.ErrStoreUnavailable.Wrap(fmt.Errorf("db.Ping: %w", err))
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			logger.Warnf(ctx, "failed to set %s: %s", pragma, err.Error())
		}
	}

	return &Pool{
		querier: querier{conn: db, queryTimeout: cfg.QueryTimeout},
		db:      db,
	}, nil
}

func dsn(path string) string {
	params := "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

func (p *Pool) Driver() string {
	return DriverName
}

func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := xdb.WithQueryTimeout(ctx, p.queryTimeout)
	defer cancel()
	return mapErr(p.db.PingContext(ctx))
}

func (p *Pool) Close() {
	if err := p.db.Close(); err != nil {
		logger.Warnf(context.Background(), "sqlite close: %s", err.Error())
	}
}

func (p *Pool) Tx(ctx context.Context, fn func(q xdb.Querier) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}

	if err = fn(&querier{conn: tx, queryTimeout: p.queryTimeout}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Warnf(ctx, "tx.Rollback: %s", rbErr.Error())
		}
		return err
	}

	return mapErr(tx.Commit())
}

func (p *Pool) Conn(ctx context.Context, fn func(q xdb.Querier) error) error {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return mapErr(err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warnf(ctx, "conn.Close: %s", err.Error())
		}
	}()

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
	err = mapErr(sqlscan.Get(ctx, q.conn, dst, query, args...))
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
	err = mapErr(sqlscan.Select(ctx, q.conn, dst, query, args...))
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
	res, err := q.conn.ExecContext(ctx, query, args...)
	err = mapErr(err)
	xdb.Observe(DriverName, "exec", start, err)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return constants.ErrDBNotFound
	}
	if errors.Is(err, sql.ErrConnDone) {
		return constants.ErrStoreUnavailable.Wrap(err)
	}
	return xdb.Unavailable(err)
}
