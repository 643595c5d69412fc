package completion

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// ThrottledCreator はレート制限と同時実行数制限付きの Creator
// 1つのコラボレータへ複数の会話を並行して送る場合に使う
type ThrottledCreator struct {
	inner   Creator
	limiter *rate.Limiter

	requestsPerMinute int

	// semaphore は並列実行を制御するセマフォ
	semaphore chan struct{}
}

// NewThrottledCreator はレート制限付きの Creator を作成する
// requestsPerMinute が 0 以下なら時間あたりの制限を行わない。
// maxConcurrent が 0 以下なら requestsPerMinute (それも 0 以下なら 1) を使う。
func NewThrottledCreator(inner Creator, requestsPerMinute, maxConcurrent int) *ThrottledCreator {
	limit := rate.Inf
	burst := 1
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60.0)
		burst = requestsPerMinute
	}

	if maxConcurrent <= 0 {
		maxConcurrent = max(requestsPerMinute, 1)
	}

	return &ThrottledCreator{
		inner:             inner,
		limiter:           rate.NewLimiter(limit, burst),
		requestsPerMinute: requestsPerMinute,
		semaphore:         make(chan struct{}, maxConcurrent),
	}
}

// Create はレート制限に従って待機してからコラボレータを呼び出す
func (tc *ThrottledCreator) Create(ctx context.Context, req Request) (*Response, error) {
	select {
	case tc.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("throttle wait failed: %w", ctx.Err())
	}
	defer func() { <-tc.semaphore }()

	if err := tc.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle wait failed: %w", err)
	}

	return tc.inner.Create(ctx, req)
}

// Status は現在の状態を返す (デバッグ・監視用)
func (tc *ThrottledCreator) Status() ThrottleStatus {
	return ThrottleStatus{
		RequestsPerMinute: tc.requestsPerMinute,
		AvailableTokens:   tc.limiter.Tokens(),
		ActiveRequests:    len(tc.semaphore),
		MaxConcurrent:     cap(tc.semaphore),
	}
}

// ThrottleStatus はレート制限の状態
type ThrottleStatus struct {
	RequestsPerMinute int
	AvailableTokens   float64
	ActiveRequests    int
	MaxConcurrent     int
}

// String はステータスを文字列表現で返す
func (s ThrottleStatus) String() string {
	return fmt.Sprintf(
		"Throttle: max=%d/min, available=%.1f, active=%d/%d",
		s.RequestsPerMinute,
		s.AvailableTokens,
		s.ActiveRequests,
		s.MaxConcurrent,
	)
}

var _ Creator = (*ThrottledCreator)(nil)
