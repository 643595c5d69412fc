package completion

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThrottledCreator(t *testing.T) {
	tc := NewThrottledCreator(newFakeCreator(), 10, 0)
	require.NotNil(t, tc)

	status := tc.Status()
	assert.Equal(t, 10, status.RequestsPerMinute)
	assert.Equal(t, 10, status.MaxConcurrent)
	assert.Equal(t, 0, status.ActiveRequests)
	assert.InDelta(t, 10.0, status.AvailableTokens, 0.5)
}

func TestThrottledCreator_PassesThrough(t *testing.T) {
	inner := newFakeCreator(fakeResult{resp: okResponse("ok")})
	tc := NewThrottledCreator(inner, 60, 2)

	resp, err := tc.Create(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Choices[0].Content)
	assert.Equal(t, 1, inner.calls())
	assert.Equal(t, 0, tc.Status().ActiveRequests)
}

func TestThrottledCreator_RateLimitExceeded(t *testing.T) {
	inner := newFakeCreator(
		fakeResult{resp: okResponse("1")},
		fakeResult{resp: okResponse("2")},
		fakeResult{resp: okResponse("3")},
	)
	tc := NewThrottledCreator(inner, 2, 0)

	_, err := tc.Create(context.Background(), Request{})
	require.NoError(t, err)
	_, err = tc.Create(context.Background(), Request{})
	require.NoError(t, err)

	// 3回目はバケットが空なので待機が必要
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = tc.Create(ctx, Request{})
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls())
}

func TestThrottledCreator_LimitsConcurrency(t *testing.T) {
	var active, peak int32
	release := make(chan struct{})

	inner := CreatorFunc(func(ctx context.Context, req Request) (*Response, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&active, -1)
		return okResponse("ok"), nil
	})
	tc := NewThrottledCreator(inner, 0, 2)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tc.Create(context.Background(), Request{})
			assert.NoError(t, err)
		}()
	}

	assert.Eventually(t, func() bool { return tc.Status().ActiveRequests == 2 }, time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 0, tc.Status().ActiveRequests)
}

func TestThrottledCreator_ContextCanceledWhileQueued(t *testing.T) {
	release := make(chan struct{})
	inner := CreatorFunc(func(ctx context.Context, req Request) (*Response, error) {
		<-release
		return okResponse("ok"), nil
	})
	tc := NewThrottledCreator(inner, 0, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = tc.Create(context.Background(), Request{})
	}()
	require.Eventually(t, func() bool { return tc.Status().ActiveRequests == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tc.Create(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
}

func TestThrottleStatus_String(t *testing.T) {
	s := ThrottleStatus{RequestsPerMinute: 60, AvailableTokens: 12.5, ActiveRequests: 1, MaxConcurrent: 4}
	assert.Equal(t, "Throttle: max=60/min, available=12.5, active=1/4", s.String())
}

func TestThrottledCreator_WithClient(t *testing.T) {
	inner := newFakeCreator(fakeResult{resp: okResponse("through throttle")})
	client := NewClient(NewThrottledCreator(inner, 600, 4), DefaultConfig(), WithLogger(discardLogger()))

	replies, err := client.Generate(context.Background(), []string{"q"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"through throttle"}, replies)
}
