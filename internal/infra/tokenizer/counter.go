package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
)

// DefaultEncoding は既定のエンコーディング
const DefaultEncoding = "cl100k_base"

// メッセージごとに加算する書式トークン数 (role と区切り)
const (
	tokensPerMessage = 3
	tokensPerReply   = 3
)

// Counter はトークン数をカウントする機能を提供する
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter は新しい Counter を作成する
// encoding が空の場合は cl100k_base を使用する
func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}

	return &Counter{encoding: enc}, nil
}

// CountTokens はテキストのトークン数をカウントする
func (c *Counter) CountTokens(text string) int {
	if c == nil || c.encoding == nil {
		// エンコーディングが初期化されていない場合は推定値を返す
		return EstimateTokens(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// CountMessages はメッセージ列のプロンプトトークン数を見積もる
func (c *Counter) CountMessages(messages []completion.Message) int {
	if len(messages) == 0 {
		return 0
	}

	total := tokensPerReply
	for _, m := range messages {
		total += tokensPerMessage
		total += c.CountTokens(string(m.Role))
		total += c.CountTokens(m.Content)
	}
	return total
}

// EstimateTokens はテキストの推定トークン数を返す
// 正確にカウントせず、大まかな推定値を返す（文字数を基準）
func EstimateTokens(text string) int {
	// 英語の場合: 約4文字で1トークン
	// 日本語の場合: 約1文字で1トークン
	// ここでは平均的な値として3文字で1トークンとする
	return len([]rune(text)) / 3
}

var _ completion.TokenCounter = (*Counter)(nil)
