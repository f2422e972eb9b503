// Package storage holds the tenant-schema conventions (C1), the RLS role
// bootstrap (C2), and the pgxpool plumbing every other component's
// transactions run through.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RestrictedRole is the non-privileged database role every tenant
// transaction connects as. It must never carry BYPASSRLS or SUPERUSER.
const RestrictedRole = "app_rls"

// PoolConfig tunes the pgxpool beyond what the DSN itself encodes.
type PoolConfig struct {
	DSN               string
	MaxConns          int32
	IdleTimeout       time.Duration
	ConnectionTimeout time.Duration
}

// NewPool creates and verifies a connection pool to PostgreSQL. Connects
// as whatever role the DSN names -- ordinarily a superuser/owner role,
// used only for migrations, C2's role bootstrap, and system-level access
// outside any tenant transaction. Tenant traffic always switches to
// RestrictedRole with SET LOCAL ROLE inside its own transaction (see the
// pipeline package's bind and BindFromSnapshot), never by connecting as
// app_rls directly.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.IdleTimeout > 0 {
		pc.MaxConnIdleTime = cfg.IdleTimeout
	}
	if cfg.ConnectionTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.ConnectionTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	pingCtx, cancel := ctx, context.CancelFunc(func() {})
	if cfg.ConnectionTimeout > 0 {
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectionTimeout)
	}
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
