package completion

import (
	"context"
	"time"
)

// Role はメッセージの発話者
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message は会話中の1メッセージ
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request は補完APIへ送るリクエスト
type Request struct {
	// Model は使用するモデル名
	Model string

	// Messages は送信するメッセージ列
	Messages []Message

	// Options は検証せずにそのまま渡す追加パラメータ (temperature, n など)
	Options map[string]any
}

// Usage はトークン使用量
type Usage struct {
	CompletionTokens int64 `json:"completion_tokens"`
	PromptTokens     int64 `json:"prompt_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add は使用量を加算した結果を返す
func (u Usage) Add(other Usage) Usage {
	return Usage{
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// FinishReason は生成が終了した理由
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonFunctionCall  FinishReason = "function_call"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// Accepted は返答として採用する終了理由かどうかを返す
func (r FinishReason) Accepted() bool {
	switch r {
	case FinishReasonStop, FinishReasonLength, FinishReasonFunctionCall:
		return true
	default:
		return false
	}
}

// Choice はレスポンス中の1候補
type Choice struct {
	Index        int
	FinishReason FinishReason
	Content      string
}

// Response は補完APIからのレスポンス
type Response struct {
	ID      string
	Model   string
	Usage   Usage
	Choices []Choice
}

// Creator は補完APIを呼び出す外部コラボレータ
type Creator interface {
	Create(ctx context.Context, req Request) (*Response, error)
}

// CreatorFunc は関数を Creator として扱うためのアダプタ
type CreatorFunc func(ctx context.Context, req Request) (*Response, error)

// Create は f(ctx, req) を呼び出す
func (f CreatorFunc) Create(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// TokenCounter はプロンプトのトークン数を見積もる
type TokenCounter interface {
	CountMessages(messages []Message) int
}

// UsageRecord は成功した1回の呼び出しの記録
type UsageRecord struct {
	RequestID  string
	Model      string
	Usage      Usage
	Choices    int
	Replies    int
	Latency    time.Duration
	OccurredAt time.Time
}

// UsageRecorder は使用量の記録先
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec UsageRecord) error
}

// FailureRecord は失敗した1回の呼び出しの記録
type FailureRecord struct {
	RequestID  string
	Model      string
	Kind       ErrorKind
	Message    string
	Attempt    int
	Prompt     string
	OccurredAt time.Time
}

// FailureRecorder は失敗の記録先
type FailureRecorder interface {
	RecordFailure(ctx context.Context, rec FailureRecord) error
}
