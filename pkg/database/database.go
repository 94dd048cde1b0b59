// Package database provides PostgreSQL connection management with lifecycle coordination.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/covenant/pkg/lifecycle"
	"github.com/JaimeStill/covenant/pkg/retry"
)

// ErrNotReady is returned by Ping before startup has connected.
var ErrNotReady = errors.New("database not ready")

// System manages database connections and lifecycle coordination.
type System interface {
	lifecycle.ReadinessChecker

	// Connection returns the underlying database connection pool.
	Connection() *sql.DB
	// Ping checks the connection, returning ErrNotReady before startup has
	// established it.
	Ping(ctx context.Context) error
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn    *sql.DB
	logger  *slog.Logger
	connect retry.Policy
	ready   atomic.Bool
}

// New opens the pool and applies pool parameters. No connection is made
// until Start runs the startup hook.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:   db,
		logger: logger.With("system", "database"),
		connect: retry.Policy{
			MaxAttempts:    cfg.ConnectAttempts,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			CallTimeout:    cfg.ConnTimeoutDuration(),
			Retryable:      func(error) bool { return true },
		},
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Ready() bool {
	return d.ready.Load()
}

func (d *database) Ping(ctx context.Context) error {
	if !d.Ready() {
		return ErrNotReady
	}
	return d.conn.PingContext(ctx)
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	d.logger.Info("starting database connection")

	lc.OnStartup(func() {
		_, err := retry.Do(lc.Context(), d.connect, func(ctx context.Context) (struct{}, error) {
			err := d.conn.PingContext(ctx)
			if err != nil {
				d.logger.Warn("database ping failed", "error", err)
			}
			return struct{}{}, err
		})
		if err != nil {
			d.logger.Error("database unreachable", "attempts", d.connect.MaxAttempts, "error", err)
			return
		}

		d.ready.Store(true)
		d.logger.Info("database connection established")
	})

	lc.OnShutdown("database", func() {
		<-lc.Context().Done()
		d.ready.Store(false)
		d.logger.Info("closing database connection")

		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}

		d.logger.Info("database connection closed")
	})

	return nil
}
