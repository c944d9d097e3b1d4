package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const createKVTable = `CREATE TABLE IF NOT EXISTS standup_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ NULL
)`

// PostgresKV 基于 PostgreSQL 单表的 KV 实现（STORE_BACKEND=postgres）
type PostgresKV struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresKV(db *sql.DB) *PostgresKV {
	return &PostgresKV{db: db, now: time.Now}
}

// EnsureSchema 创建 standup_kv 表（幂等）
func (p *PostgresKV) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createKVTable); err != nil {
		return fmt.Errorf("failed to create standup_kv table: %w", err)
	}
	return nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM standup_kv WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		key, p.now(),
	).Scan(&val)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	var expires sql.NullTime
	if ttl > 0 {
		expires = sql.NullTime{Time: p.now().Add(ttl), Valid: true}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO standup_kv (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expires,
	)
	return err
}

func (p *PostgresKV) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := p.db.ExecContext(ctx, `DELETE FROM standup_kv WHERE key = $1`, key); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresKV) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
