package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgQuerier es el subconjunto de *pgxpool.Pool que usa el store; pgxmock lo
// implementa en tests.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type postgresStore struct {
	pool  pgQuerier
	table string // ya sanitizada
	now   func() time.Time
}

// NewPostgres abre un pool y crea la tabla si no existe.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn vacío")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pcfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := newPostgresStore(pool, cfg.Table)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func newPostgresStore(pool pgQuerier, table string) *postgresStore {
	if table == "" {
		table = "farmauth_session_kv"
	}
	return &postgresStore{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
		now:   time.Now,
	}
}

// Migrate crea la tabla clave/valor.
func (p *postgresStore) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+p.table+` (
	key        text PRIMARY KEY,
	value      text NOT NULL,
	expires_at timestamptz,
	updated_at timestamptz NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", p.table, err)
	}
	return nil
}

func (p *postgresStore) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM `+p.table+` WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		key, p.now().UTC(),
	).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (p *postgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var exp *time.Time
	if ttl > 0 {
		t := p.now().Add(ttl).UTC()
		exp = &t
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO `+p.table+` (key, value, expires_at, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, value, exp,
	)
	return err
}

func (p *postgresStore) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM `+p.table+` WHERE key = $1`, key)
	return err
}

func (p *postgresStore) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *postgresStore) Close() error {
	p.pool.Close()
	return nil
}
