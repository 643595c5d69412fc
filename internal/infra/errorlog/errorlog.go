package errorlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
)

// MaxPromptLength はログに残すプロンプトの最大バイト数
const MaxPromptLength = 2000

// Record は失敗した補完呼び出しのログレコードです
type Record struct {
	// Timestamp はエラー発生時刻
	Timestamp time.Time `json:"timestamp"`
	// RequestID はリクエストの識別子
	RequestID string `json:"request_id"`
	// Model はモデル名
	Model string `json:"model"`
	// Kind はエラーの種類
	Kind completion.ErrorKind `json:"kind"`
	// Message はエラーメッセージ
	Message string `json:"message"`
	// Attempt は何回目の試行か
	Attempt int `json:"attempt"`
	// Prompt は送信したメッセージ (切り詰め済み)
	Prompt string `json:"prompt"`
}

// Recorder は失敗した補完呼び出しを日付ごとの JSONL ファイルに記録します
type Recorder struct {
	logFile  *os.File
	logMutex sync.Mutex
	enabled  bool
	logger   *slog.Logger
}

// New は新しい Recorder を作成します
// logDir が空の場合は何も記録しない Recorder を返します
func New(logDir string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if logDir == "" {
		return &Recorder{enabled: false, logger: logger}, nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := filepath.Join(logDir, FileName(time.Now()))
	logFile, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Recorder{
		logFile: logFile,
		enabled: true,
		logger:  logger,
	}, nil
}

// FileName は指定日のログファイル名を返します
func FileName(t time.Time) string {
	return fmt.Sprintf("completion_errors_%s.jsonl", t.Format("2006-01-02"))
}

// Enabled は記録が有効かどうかを返します
func (r *Recorder) Enabled() bool {
	return r.enabled
}

// Close はログファイルを閉じます
func (r *Recorder) Close() error {
	r.logMutex.Lock()
	defer r.logMutex.Unlock()

	if r.logFile == nil {
		return nil
	}
	err := r.logFile.Close()
	r.logFile = nil
	r.enabled = false
	return err
}

// RecordFailure は completion.FailureRecorder を実装します
func (r *Recorder) RecordFailure(_ context.Context, rec completion.FailureRecord) error {
	return r.Write(Record{
		Timestamp: rec.OccurredAt,
		RequestID: rec.RequestID,
		Model:     rec.Model,
		Kind:      rec.Kind,
		Message:   rec.Message,
		Attempt:   rec.Attempt,
		Prompt:    TruncateString(rec.Prompt, MaxPromptLength),
	})
}

// Write はレコードを1行のJSONとして追記します
func (r *Recorder) Write(record Record) error {
	if !r.enabled {
		return nil
	}

	r.logMutex.Lock()
	defer r.logMutex.Unlock()

	if r.logFile == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal error record: %w", err)
	}

	if _, err := r.logFile.Write(append(jsonBytes, '\n')); err != nil {
		return fmt.Errorf("failed to write log: %w", err)
	}

	r.logger.Debug("completion failure recorded",
		slog.String("request_id", record.RequestID),
		slog.String("kind", string(record.Kind)),
	)
	return nil
}

// TruncateString は文字列を指定されたバイト数以内に切り詰めます（ログ記録用）
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// マルチバイト文字の途中で切らない
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}

var _ completion.FailureRecorder = (*Recorder)(nil)
