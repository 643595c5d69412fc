package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX は pgxpool.Pool と pgx.Tx の共通インターフェース
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema は使用量台帳のテーブル定義
const Schema = `
CREATE TABLE IF NOT EXISTS completion_usage (
    id                UUID PRIMARY KEY,
    request_id        TEXT        NOT NULL,
    model             TEXT        NOT NULL,
    prompt_tokens     BIGINT      NOT NULL,
    completion_tokens BIGINT      NOT NULL,
    total_tokens      BIGINT      NOT NULL,
    choices           INTEGER     NOT NULL,
    replies           INTEGER     NOT NULL,
    latency_ms        BIGINT      NOT NULL,
    occurred_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_completion_usage_model_occurred_at
    ON completion_usage (model, occurred_at);

CREATE TABLE IF NOT EXISTS completion_usage_totals (
    model             TEXT PRIMARY KEY,
    requests          BIGINT      NOT NULL,
    prompt_tokens     BIGINT      NOT NULL,
    completion_tokens BIGINT      NOT NULL,
    total_tokens      BIGINT      NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);
`

// UsageEntry は台帳の1行
type UsageEntry struct {
	ID               uuid.UUID
	RequestID        string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Choices          int
	Replies          int
	Latency          time.Duration
	OccurredAt       time.Time
}

// ModelTotals はモデルごとの累計
type ModelTotals struct {
	Model            string
	Requests         int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	UpdatedAt        time.Time
}

// UsageRepository は使用量台帳へのデータアクセスを提供する
type UsageRepository struct {
	db DBTX
}

// NewUsageRepository は新しい UsageRepository を作成する
func NewUsageRepository(db DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

// EnsureSchema はテーブルが存在しなければ作成する
func (r *UsageRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure usage schema: %w", err)
	}
	return nil
}

// InsertEntry は台帳に1行追加する
func (r *UsageRepository) InsertEntry(ctx context.Context, e UsageEntry) error {
	const q = `
INSERT INTO completion_usage (
    id, request_id, model, prompt_tokens, completion_tokens, total_tokens,
    choices, replies, latency_ms, occurred_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, q,
		pgtype.UUID{Bytes: [16]byte(e.ID), Valid: true},
		e.RequestID,
		e.Model,
		e.PromptTokens,
		e.CompletionTokens,
		e.TotalTokens,
		e.Choices,
		e.Replies,
		e.Latency.Milliseconds(),
		e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage entry: %w", err)
	}
	return nil
}

// AddToTotals はモデルの累計に加算する
func (r *UsageRepository) AddToTotals(ctx context.Context, e UsageEntry) error {
	const q = `
INSERT INTO completion_usage_totals (
    model, requests, prompt_tokens, completion_tokens, total_tokens, updated_at
) VALUES ($1, 1, $2, $3, $4, $5)
ON CONFLICT (model) DO UPDATE SET
    requests          = completion_usage_totals.requests + 1,
    prompt_tokens     = completion_usage_totals.prompt_tokens + EXCLUDED.prompt_tokens,
    completion_tokens = completion_usage_totals.completion_tokens + EXCLUDED.completion_tokens,
    total_tokens      = completion_usage_totals.total_tokens + EXCLUDED.total_tokens,
    updated_at        = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, q, e.Model, e.PromptTokens, e.CompletionTokens, e.TotalTokens, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to update usage totals: %w", err)
	}
	return nil
}

// ListTotals はモデル名順に累計を返す
func (r *UsageRepository) ListTotals(ctx context.Context) ([]ModelTotals, error) {
	const q = `
SELECT model, requests, prompt_tokens, completion_tokens, total_tokens, updated_at
FROM completion_usage_totals
ORDER BY model`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage totals: %w", err)
	}
	defer rows.Close()

	var totals []ModelTotals
	for rows.Next() {
		var t ModelTotals
		if err := rows.Scan(&t.Model, &t.Requests, &t.PromptTokens, &t.CompletionTokens, &t.TotalTokens, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage totals: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage totals: %w", err)
	}
	return totals, nil
}

// CountEntries は指定モデルの台帳行数を返す。model が空なら全件
func (r *UsageRepository) CountEntries(ctx context.Context, model string) (int64, error) {
	var n int64
	var err error
	if model == "" {
		err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM completion_usage`).Scan(&n)
	} else {
		err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM completion_usage WHERE model = $1`, model).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count usage entries: %w", err)
	}
	return n, nil
}
