package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRetryClient(creator Creator, sleeper *sleepRecorder, opts ...Option) *Client {
	opts = append([]Option{WithLogger(discardLogger()), WithSleeper(sleeper.sleep)}, opts...)
	return NewClient(creator, DefaultConfig(), opts...)
}

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{name: "既定値", policy: DefaultRetryPolicy()},
		{name: "待機なし", policy: RetryPolicy{MaxTries: 1, Delay: 0}},
		{name: "試行回数0", policy: RetryPolicy{MaxTries: 0, Delay: time.Second}, wantErr: true},
		{name: "負の待機", policy: RetryPolicy{MaxTries: 3, Delay: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRetryPolicy)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxTries)
	assert.Equal(t, 5*time.Second, p.Delay)
}

func TestGenerateRetry_SucceedsAfterRateLimits(t *testing.T) {
	creator := newFakeCreator(
		fakeResult{err: rateLimitErr()},
		fakeResult{err: rateLimitErr()},
		fakeResult{resp: okResponse("finally")},
	)
	sleeper := &sleepRecorder{}
	client := newRetryClient(creator, sleeper)

	replies, err := client.GenerateRetry(context.Background(), RetryPolicy{MaxTries: 3, Delay: 0}, []string{"q"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"finally"}, replies)
	assert.Equal(t, 3, creator.calls())
	assert.Equal(t, 2, sleeper.count())
}

func TestGenerateRetry_UsesPolicyDelay(t *testing.T) {
	creator := newFakeCreator(
		fakeResult{err: rateLimitErr()},
		fakeResult{resp: okResponse("ok")},
	)
	sleeper := &sleepRecorder{}
	client := newRetryClient(creator, sleeper)

	_, err := client.GenerateRetry(context.Background(), RetryPolicy{MaxTries: 3, Delay: 250 * time.Millisecond}, []string{"q"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, sleeper.delays)
}

func TestGenerateRetry_NonRateLimitErrorIsNotRetried(t *testing.T) {
	badRequest := &APIError{Kind: KindExternal, StatusCode: 400, Err: errors.New("400 Bad Request")}
	creator := newFakeCreator(
		fakeResult{err: badRequest},
		fakeResult{resp: okResponse("never")},
	)
	sleeper := &sleepRecorder{}
	client := newRetryClient(creator, sleeper)

	replies, err := client.GenerateRetry(context.Background(), DefaultRetryPolicy(), []string{"q"}, "", nil)
	assert.Nil(t, replies)
	assert.Same(t, badRequest, err)
	assert.Equal(t, 1, creator.calls())
	assert.Equal(t, 0, sleeper.count())
}

func TestGenerateRetry_PlainErrorIsNotRetried(t *testing.T) {
	netErr := errors.New("dial tcp: connection refused")
	creator := newFakeCreator(fakeResult{err: netErr})
	sleeper := &sleepRecorder{}
	client := newRetryClient(creator, sleeper)

	_, err := client.GenerateRetry(context.Background(), DefaultRetryPolicy(), []string{"q"}, "", nil)
	assert.Same(t, netErr, err)
	assert.Equal(t, 1, creator.calls())
}

func TestGenerateRetry_EmptyReplyStopsRetrying(t *testing.T) {
	filtered := &Response{Choices: []Choice{{FinishReason: FinishReasonContentFilter, Content: "hidden"}}}
	creator := newFakeCreator(
		fakeResult{resp: filtered},
		fakeResult{resp: okResponse("would have succeeded")},
	)
	sleeper := &sleepRecorder{}
	client := newRetryClient(creator, sleeper)

	replies, err := client.GenerateRetry(context.Background(), DefaultRetryPolicy(), []string{"q"}, "", nil)
	require.NoError(t, err)
	assert.Empty(t, replies)
	assert.Equal(t, 1, creator.calls())
	assert.Equal(t, 0, sleeper.count())
}

func TestGenerateRetry_ExhaustedReturnsEmpty(t *testing.T) {
	creator := newFakeCreator(
		fakeResult{err: rateLimitErr()},
		fakeResult{err: rateLimitErr()},
		fakeResult{err: rateLimitErr()},
	)
	sleeper := &sleepRecorder{}
	failures := &failureSink{}
	client := newRetryClient(creator, sleeper, WithFailureRecorder(failures))

	replies, err := client.GenerateRetry(context.Background(), RetryPolicy{MaxTries: 3, Delay: time.Second}, []string{"q"}, "", nil)
	require.NoError(t, err)
	assert.Empty(t, replies)
	assert.Equal(t, 3, creator.calls())
	// 最後の試行の後には待機しない
	assert.Equal(t, 2, sleeper.count())

	require.Len(t, failures.records, 3)
	for i, rec := range failures.records {
		assert.Equal(t, KindRateLimited, rec.Kind)
		assert.Equal(t, i+1, rec.Attempt)
	}
}

func TestGenerateRetry_InvalidPolicy(t *testing.T) {
	creator := newFakeCreator(fakeResult{resp: okResponse("x")})
	client := newRetryClient(creator, &sleepRecorder{})

	_, err := client.GenerateRetry(context.Background(), RetryPolicy{MaxTries: 0}, []string{"q"}, "", nil)
	assert.ErrorIs(t, err, ErrInvalidRetryPolicy)
	assert.Equal(t, 0, creator.calls())
}

func TestGenerateRetry_ContextCanceledDuringWait(t *testing.T) {
	creator := newFakeCreator(
		fakeResult{err: rateLimitErr()},
		fakeResult{resp: okResponse("never")},
	)
	client := NewClient(creator, DefaultConfig(), WithLogger(discardLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.GenerateRetry(ctx, RetryPolicy{MaxTries: 3, Delay: time.Minute}, []string{"q"}, "", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, 1, creator.calls())
}

func TestGenerateRetry_SleepErrorIsWrapped(t *testing.T) {
	creator := newFakeCreator(fakeResult{err: rateLimitErr()})
	sleepErr := errors.New("interrupted")
	client := NewClient(creator, DefaultConfig(),
		WithLogger(discardLogger()),
		WithSleeper(func(context.Context, time.Duration) error { return sleepErr }),
	)

	_, err := client.GenerateRetry(context.Background(), DefaultRetryPolicy(), []string{"q"}, "", nil)
	assert.ErrorIs(t, err, sleepErr)
}
