// Package postgres provides the Postgres-backed persistence gateway.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/podcast-ingest/internal/spotify"
	"github.com/JakeFAU/podcast-ingest/internal/store"
)

// GatewayConfig controls the Postgres connection pool.
type GatewayConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Pool is the subset of pgxpool.Pool the gateway needs.
type Pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// Gateway reads pending work and writes records, one transaction per record.
type Gateway struct {
	pool Pool
}

// NewGateway opens a pgx pool for cfg.
func NewGateway(ctx context.Context, cfg GatewayConfig) (*Gateway, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Gateway{pool: pool}, nil
}

// NewGatewayWithPool constructs a gateway from an existing pool (primarily for testing).
func NewGatewayWithPool(pool Pool) (*Gateway, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &Gateway{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (g *Gateway) Close() {
	if g == nil || g.pool == nil {
		return
	}
	g.pool.Close()
}

// EnsureSchema applies the table's additive migrations in one transaction.
func (g *Gateway) EnsureSchema(ctx context.Context, table store.Table) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ensure %s schema: begin: %w", table.Name, err)
	}
	for _, stmt := range table.Migrations {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			rollback(ctx, tx)
			return fmt.Errorf("ensure %s schema: %w", table.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ensure %s schema: commit: %w", table.Name, err)
	}
	return nil
}

// FetchPending lists the table's pending items. Rows with a blank value are
// dropped; values and aux keys are trimmed.
func (g *Gateway) FetchPending(ctx context.Context, table store.Table) ([]store.PendingItem, error) {
	rows, err := g.pool.Query(ctx, table.PendingSQL)
	if err != nil {
		return nil, fmt.Errorf("fetch pending for %s: %w", table.Name, err)
	}
	defer rows.Close()

	var items []store.PendingItem
	for rows.Next() {
		var value, aux string
		if err := rows.Scan(&value, &aux); err != nil {
			return nil, fmt.Errorf("scan pending for %s: %w", table.Name, err)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		items = append(items, store.PendingItem{Value: value, AuxKey: strings.TrimSpace(aux)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending for %s: %w", table.Name, err)
	}
	return items, nil
}

// UpsertProfile inserts a show profile. It reports false when the url already
// exists.
func (g *Gateway) UpsertProfile(ctx context.Context, table store.Table, p spotify.ShowProfile) (bool, error) {
	return g.insert(ctx, table,
		p.ShowName,
		p.HostName,
		p.About,
		p.Rate,
		p.Reviews,
		p.URL,
		p.Links,
		p.Category,
		nullable(p.SearchID),
		nullable(p.EpisodeDescription),
	)
}

// UpsertSearchResult inserts a search hit. It reports false when the url
// already exists.
func (g *Gateway) UpsertSearchResult(ctx context.Context, table store.Table, r spotify.SearchResult) (bool, error) {
	return g.insert(ctx, table,
		r.AuthorName,
		r.ProfileTitle,
		r.Query,
		r.URL,
		nullable(r.SearchID),
	)
}

func (g *Gateway) insert(ctx context.Context, table store.Table, args ...any) (bool, error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("insert into %s: begin: %w", table.Name, err)
	}
	tag, err := tx.Exec(ctx, table.InsertSQL, args...)
	if err != nil {
		rollback(ctx, tx)
		return false, fmt.Errorf("insert into %s: %w", table.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("insert into %s: commit: %w", table.Name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// rollback ignores the rollback error; the caller already returns the cause.
func rollback(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(ctx)
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
