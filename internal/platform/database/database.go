package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Database はコネクションプールを保持する
type Database struct {
	Pool *pgxpool.Pool
}

// New は接続URLからコネクションプールを作成し、疎通を確認する
func New(ctx context.Context, databaseURL string) (*Database, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{Pool: pool}, nil
}

// Close はコネクションプールを閉じる
func (d *Database) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
}
