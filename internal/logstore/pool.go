// Package logstore is the content-addressed persistent store of
// NormalizedLog values: it enforces hash-based dedup per account and serves
// time/tenant queries and EQL queries.
package logstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/borelli28/siembackend/internal/health"
	"github.com/borelli28/siembackend/internal/security"
)

// Pool wraps a pgxpool.Pool with the health tracking internal/health needs
// to implement its Pinger interface.
type Pool struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	healthy atomic.Bool
}

// PoolConfig configures the underlying connection pool.
type PoolConfig struct {
	URL                 string
	MaxConns            int32
	MinConns            int32
	HealthCheckInterval time.Duration
	ConnectTimeout      time.Duration
	Logger              *slog.Logger
}

// NewPool connects to Postgres and verifies the connection with a ping.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("logstore: invalid database url: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.HealthCheckPeriod = cfg.HealthCheckInterval
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poolConfig.ConnConfig.OnNotice = func(c *pgconn.PgConn, n *pgconn.Notice) {
		logger.Debug("postgres notice", "severity", n.Severity, "message", n.Message)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pgxPool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("logstore: failed to connect: %w", err)
	}

	if err := pgxPool.Ping(connectCtx); err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("logstore: ping failed: %w", err)
	}

	p := &Pool{pool: pgxPool, logger: logger}
	p.healthy.Store(true)

	logger.Info("log store connection pool initialized",
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
		"database", security.MaskDatabaseURL(cfg.URL),
	)

	return p, nil
}

// IsHealthy reports the pool's last known health, satisfying
// internal/health.Pinger.
func (p *Pool) IsHealthy() bool {
	return p.healthy.Load()
}

// Ping probes the database directly and updates the cached health flag.
func (p *Pool) Ping(ctx context.Context) error {
	err := p.pool.Ping(ctx)
	p.healthy.Store(err == nil)
	return err
}

// ConnectionStats satisfies internal/health.Pinger.
func (p *Pool) ConnectionStats() health.ConnectionStats {
	stat := p.pool.Stat()
	return poolStats{acquired: stat.AcquiredConns(), idle: stat.IdleConns()}
}

type poolStats struct {
	acquired int32
	idle     int32
}

func (s poolStats) AcquiredConns() int32 { return s.acquired }
func (s poolStats) IdleConns() int32     { return s.idle }

// Close releases all pooled connections.
func (p *Pool) Close() {
	p.pool.Close()
}

// Raw exposes the underlying pgxpool.Pool for other packages (internal/alerts)
// that persist to the same database via a shared connection pool.
func (p *Pool) Raw() *pgxpool.Pool {
	return p.pool
}
