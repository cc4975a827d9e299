package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/heartlog/rehab-api/internal/config"
)

var (
	// ErrNotConfigured is returned when no DSN was provided.
	ErrNotConfigured = errors.New("postgres dsn not configured")
	// ErrNotConnected is returned when a connection attempt failed. It is recoverable:
	// the next call retries.
	ErrNotConnected = errors.New("postgres not connected")
)

// connectTimeout bounds one shared connection attempt, independent of any caller.
const connectTimeout = 5 * time.Second

// Postgres wraps a pgx pool that is opened on first use and reopened after a failed attempt.
type Postgres struct {
	cfg     config.PostgresConfig
	logger  *zap.Logger
	connect func(ctx context.Context) (*pgxpool.Pool, error)
	group   singleflight.Group

	mu     sync.RWMutex
	pool   *pgxpool.Pool
	closed bool
}

// NewPostgres tries to connect once. A failed attempt is logged, not returned, so the
// process keeps serving and reconnects lazily.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) *Postgres {
	p := &Postgres{cfg: cfg, logger: logger}
	p.connect = p.dial
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; database calls will fail")
		return p
	}
	if _, err := p.Pool(ctx); err != nil {
		logger.Warn("postgres unavailable at startup; will retry on demand", zap.Error(err))
	}
	return p
}

// Pool returns the live pool, connecting when needed. Concurrent callers wait on one
// shared attempt, each only as long as its own ctx allows.
func (p *Postgres) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	if p == nil || p.cfg.DSN == "" {
		return nil, ErrNotConfigured
	}
	if pool := p.current(); pool != nil {
		return pool, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	ch := p.group.DoChan("connect", func() (any, error) {
		if pool := p.current(); pool != nil {
			return pool, nil
		}
		dialCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		pool, err := p.connect(dialCtx)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			pool.Close()
			return nil, ErrNotConnected
		}
		p.pool = pool
		p.logger.Info("connected to postgres")
		return pool, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*pgxpool.Pool), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, ctx.Err())
	}
}

func (p *Postgres) current() *pgxpool.Pool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pool
}

func (p *Postgres) dial(ctx context.Context) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if p.cfg.MaxConns > 0 {
		poolCfg.MaxConns = p.cfg.MaxConns
	}
	if p.cfg.MinConns > 0 {
		poolCfg.MinConns = p.cfg.MinConns
	}
	if p.cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(p.cfg.ConnMaxIdleSec) * time.Second
	}
	if p.cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(p.cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return pool, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
}

// Ping verifies connectivity, connecting first when needed.
func (p *Postgres) Ping(ctx context.Context) error {
	pool, err := p.Pool(ctx)
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Exec runs a statement on the pool.
func (p *Postgres) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	pool, err := p.Pool(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return pool.Exec(ctx, sql, args...)
}

// Query runs a query on the pool.
func (p *Postgres) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	pool, err := p.Pool(ctx)
	if err != nil {
		return nil, err
	}
	return pool.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query. Connection failures surface from Scan.
func (p *Postgres) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	pool, err := p.Pool(ctx)
	if err != nil {
		return errRow{err: err}
	}
	return pool.QueryRow(ctx, sql, args...)
}

// Begin starts a transaction.
func (p *Postgres) Begin(ctx context.Context) (pgx.Tx, error) {
	pool, err := p.Pool(ctx)
	if err != nil {
		return nil, err
	}
	return pool.Begin(ctx)
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}
