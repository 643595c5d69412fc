package completion

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultMaxTries はレート制限時の既定の最大試行回数
	DefaultMaxTries = 3

	// DefaultRetryDelay はレート制限時の既定の待機時間
	DefaultRetryDelay = 5 * time.Second
)

// RetryPolicy はレート制限エラー時の再試行方針
type RetryPolicy struct {
	// MaxTries は試行回数の上限 (初回を含む)
	MaxTries int

	// Delay はレート制限を受けてから次の試行までの固定待機時間
	Delay time.Duration
}

// DefaultRetryPolicy は既定の再試行方針を返す
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries: DefaultMaxTries,
		Delay:    DefaultRetryDelay,
	}
}

// Validate は方針が有効かどうかを検証する
func (p RetryPolicy) Validate() error {
	if p.MaxTries < 1 {
		return fmt.Errorf("%w: max tries must be at least 1, got %d", ErrInvalidRetryPolicy, p.MaxTries)
	}
	if p.Delay < 0 {
		return fmt.Errorf("%w: delay must not be negative, got %s", ErrInvalidRetryPolicy, p.Delay)
	}
	return nil
}

// GenerateRetry はレート制限エラーの場合に限り Generate を再試行する
//
// レート制限以外のエラーは即座に返す。空でない返答を得たらそこで返す。
// エラーなしで空の返答が返った場合も再試行をやめて空のまま返す。
// すべての試行がレート制限で失敗した場合は最後の結果 (空) を nil エラーで返す。
func (c *Client) GenerateRetry(ctx context.Context, policy RetryPolicy, conversation []string, system string, options map[string]any) ([]string, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	var replies []string
	for attempt := 1; attempt <= policy.MaxTries; attempt++ {
		var err error
		replies, err = c.generate(ctx, conversation, system, options, attempt)
		if err != nil {
			if !IsRateLimited(err) {
				return nil, err
			}

			replies = nil
			if attempt == policy.MaxTries {
				break
			}

			c.logger.InfoContext(ctx, "rate limited, waiting before retry",
				slog.Int("attempt", attempt),
				slog.Int("max_tries", policy.MaxTries),
				slog.Duration("delay", policy.Delay),
			)
			if err := c.sleep(ctx, policy.Delay); err != nil {
				return nil, fmt.Errorf("retry wait interrupted: %w", err)
			}
			continue
		}

		if len(replies) == 0 {
			// 異常な空レスポンス: 再試行せずにそのまま返す
			c.logger.WarnContext(ctx, "completion returned no usable replies",
				slog.Int("attempt", attempt),
			)
		}
		return replies, nil
	}

	c.logger.WarnContext(ctx, "retries exhausted by rate limiting",
		slog.Int("max_tries", policy.MaxTries),
	)
	return replies, nil
}
