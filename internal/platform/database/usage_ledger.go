package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
	"github.com/Maxlinn/LangPipe/internal/infra/postgres"
)

// UsageLedger は補完呼び出しごとの使用量を Postgres に記録する
// 台帳への追加とモデル別累計の更新を1トランザクションで行う
type UsageLedger struct {
	tx   *TransactionProvider
	read *postgres.UsageRepository
}

// NewUsageLedger は新しい UsageLedger を作成する
func NewUsageLedger(db *Database) *UsageLedger {
	return &UsageLedger{
		tx:   NewTransactionProvider(db.Pool),
		read: postgres.NewUsageRepository(db.Pool),
	}
}

// schemaLockID は複数プロセスからのスキーマ作成を直列化するロックID
var schemaLockID = GenerateLockID("langpipe", "completion_usage", "schema")

// EnsureSchema はテーブルを作成する
// 同時に CREATE TABLE IF NOT EXISTS を実行すると一意制約違反になるため、アドバイザリロック下で行う
func (l *UsageLedger) EnsureSchema(ctx context.Context) error {
	_, err := Transact(ctx, l.tx, func(a *Adapter) (struct{}, error) {
		if err := a.Lock.Acquire(ctx, schemaLockID); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, a.Usage.EnsureSchema(ctx)
	})
	return err
}

// RecordUsage は completion.UsageRecorder を実装する
func (l *UsageLedger) RecordUsage(ctx context.Context, rec completion.UsageRecord) error {
	entry := postgres.UsageEntry{
		ID:               uuid.New(),
		RequestID:        rec.RequestID,
		Model:            rec.Model,
		PromptTokens:     rec.Usage.PromptTokens,
		CompletionTokens: rec.Usage.CompletionTokens,
		TotalTokens:      rec.Usage.TotalTokens,
		Choices:          rec.Choices,
		Replies:          rec.Replies,
		Latency:          rec.Latency,
		OccurredAt:       rec.OccurredAt,
	}

	_, err := Transact(ctx, l.tx, func(a *Adapter) (struct{}, error) {
		if err := a.Usage.InsertEntry(ctx, entry); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, a.Usage.AddToTotals(ctx, entry)
	})
	return err
}

// Totals はモデル別の累計を返す
func (l *UsageLedger) Totals(ctx context.Context) ([]postgres.ModelTotals, error) {
	return l.read.ListTotals(ctx)
}

// CountEntries は台帳の行数を返す
func (l *UsageLedger) CountEntries(ctx context.Context, model string) (int64, error) {
	return l.read.CountEntries(ctx, model)
}

var _ completion.UsageRecorder = (*UsageLedger)(nil)
