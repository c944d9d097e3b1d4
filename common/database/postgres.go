package database

import (
	"database/sql"
	"fmt"

	"standup-formstack/common/config"

	_ "github.com/lib/pq"
)

// NewPostgresDB 打开 lib/pq 连接池；可用性由调用方轮询确认
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s@%s: %w", cfg.Database, cfg.Host, err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// Close 关闭连接池
func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
