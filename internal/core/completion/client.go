package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client は会話とシステムプロンプトから補完リクエストを組み立て、
// コラボレータを呼び出して返答とトークン使用量を処理する
//
// 累積カウンタと直近のレスポンスはミューテックスで保護されるため、
// 1つの Client を複数のゴルーチンで共有できる。
type Client struct {
	creator Creator

	mu           sync.Mutex
	config       Config
	lastResponse *Response

	logger           *slog.Logger
	tokenCounter     TokenCounter
	usageRecorders   []UsageRecorder
	failureRecorders []FailureRecorder
	sleep            func(ctx context.Context, d time.Duration) error
	now              func() time.Time
}

// Option は Client 構築時のオプション
type Option func(*Client)

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTokenCounter は送信前のトークン見積もりに使うカウンタを設定する
func WithTokenCounter(counter TokenCounter) Option {
	return func(c *Client) {
		c.tokenCounter = counter
	}
}

// WithUsageRecorder は使用量の記録先を追加する
func WithUsageRecorder(recorders ...UsageRecorder) Option {
	return func(c *Client) {
		c.usageRecorders = append(c.usageRecorders, recorders...)
	}
}

// WithFailureRecorder は失敗の記録先を追加する
func WithFailureRecorder(recorders ...FailureRecorder) Option {
	return func(c *Client) {
		c.failureRecorders = append(c.failureRecorders, recorders...)
	}
}

// WithSleeper はリトライ間の待機処理を差し替える
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient は新しい Client を作成する
func NewClient(creator Creator, cfg Config, opts ...Option) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	c := &Client{
		creator: creator,
		config:  cfg,
		logger:  slog.Default(),
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model はモデル名を返す
func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Model
}

// Config は現在の設定と累積カウンタのスナップショットを返す
func (c *Client) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// LastResponse は直近に成功した呼び出しのレスポンスを返す
func (c *Client) LastResponse() *Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResponse
}

func (c *Client) String() string {
	return fmt.Sprintf("Client(%s)", c.Config())
}

// BuildMessages は会話をメッセージ列に変換する
// system が空でなければ先頭に system メッセージを置き、以降は偶数番目を user、
// 奇数番目を assistant とする
func BuildMessages(conversation []string, system string) []Message {
	messages := make([]Message, 0, len(conversation)+1)
	if system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	for i, turn := range conversation {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		messages = append(messages, Message{Role: role, Content: turn})
	}
	return messages
}

// Generate は会話を補完APIへ送り、採用された候補の本文を返す
//
// コラボレータのエラーは加工せずそのまま返す。終了理由が stop / length /
// function_call 以外の候補は黙って除外する。
func (c *Client) Generate(ctx context.Context, conversation []string, system string, options map[string]any) ([]string, error) {
	return c.generate(ctx, conversation, system, options, 1)
}

func (c *Client) generate(ctx context.Context, conversation []string, system string, options map[string]any, attempt int) ([]string, error) {
	requestID := uuid.NewString()
	model := c.Model()

	req := Request{
		Model:    model,
		Messages: BuildMessages(conversation, system),
		Options:  options,
	}

	logger := c.logger.With(
		slog.String("request_id", requestID),
		slog.String("model", model),
		slog.Int("attempt", attempt),
	)

	if c.tokenCounter != nil {
		logger.DebugContext(ctx, "sending completion request",
			slog.Int("messages", len(req.Messages)),
			slog.Int("estimated_prompt_tokens", c.tokenCounter.CountMessages(req.Messages)),
		)
	}

	start := c.now()
	resp, err := c.creator.Create(ctx, req)
	if err != nil {
		kind := KindOf(err)
		logger.WarnContext(ctx, "completion request failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		c.recordFailure(ctx, logger, FailureRecord{
			RequestID:  requestID,
			Model:      model,
			Kind:       kind,
			Message:    err.Error(),
			Attempt:    attempt,
			Prompt:     flattenMessages(req.Messages),
			OccurredAt: c.now(),
		})
		return nil, err
	}
	if resp == nil {
		return nil, ErrNilResponse
	}
	latency := c.now().Sub(start)

	c.mu.Lock()
	c.lastResponse = resp
	c.config.addUsage(resp.Usage)
	c.mu.Unlock()

	replies := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		if !choice.FinishReason.Accepted() {
			logger.DebugContext(ctx, "dropping choice",
				slog.Int("index", choice.Index),
				slog.String("finish_reason", string(choice.FinishReason)),
			)
			continue
		}
		replies = append(replies, choice.Content)
	}

	logger.InfoContext(ctx, "completion request succeeded",
		slog.Int64("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int64("completion_tokens", resp.Usage.CompletionTokens),
		slog.Int64("total_tokens", resp.Usage.TotalTokens),
		slog.Int("choices", len(resp.Choices)),
		slog.Int("replies", len(replies)),
		slog.Duration("latency", latency),
	)

	c.recordUsage(ctx, logger, UsageRecord{
		RequestID:  requestID,
		Model:      model,
		Usage:      resp.Usage,
		Choices:    len(resp.Choices),
		Replies:    len(replies),
		Latency:    latency,
		OccurredAt: c.now(),
	})

	return replies, nil
}

// recordUsage は記録先のエラーを呼び出し元へ伝播させない
func (c *Client) recordUsage(ctx context.Context, logger *slog.Logger, rec UsageRecord) {
	for _, r := range c.usageRecorders {
		if err := r.RecordUsage(ctx, rec); err != nil {
			logger.WarnContext(ctx, "failed to record usage", slog.String("error", err.Error()))
		}
	}
}

func (c *Client) recordFailure(ctx context.Context, logger *slog.Logger, rec FailureRecord) {
	for _, r := range c.failureRecorders {
		if err := r.RecordFailure(ctx, rec); err != nil {
			logger.WarnContext(ctx, "failed to record failure", slog.String("error", err.Error()))
		}
	}
}

func flattenMessages(messages []Message) string {
	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
