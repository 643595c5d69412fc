package completion

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// fakeCreator はあらかじめ用意した結果を順番に返す Creator
type fakeCreator struct {
	mu       sync.Mutex
	results  []fakeResult
	requests []Request
}

type fakeResult struct {
	resp *Response
	err  error
}

func newFakeCreator(results ...fakeResult) *fakeCreator {
	return &fakeCreator{results: results}
}

func (f *fakeCreator) Create(_ context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if len(f.results) == 0 {
		return nil, &APIError{Kind: KindExternal, Err: io.ErrUnexpectedEOF}
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.resp, r.err
}

func (f *fakeCreator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// sleepRecorder は待機を実際には行わず、呼び出しを記録する
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *sleepRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

type usageSink struct {
	mu      sync.Mutex
	records []UsageRecord
	err     error
}

func (s *usageSink) RecordUsage(_ context.Context, rec UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

type failureSink struct {
	mu      sync.Mutex
	records []FailureRecord
}

func (s *failureSink) RecordFailure(_ context.Context, rec FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okResponse(contents ...string) *Response {
	choices := make([]Choice, len(contents))
	for i, c := range contents {
		choices[i] = Choice{Index: i, FinishReason: FinishReasonStop, Content: c}
	}
	return &Response{
		ID:      "chatcmpl-test",
		Model:   "test-model",
		Usage:   Usage{CompletionTokens: 5, PromptTokens: 10, TotalTokens: 15},
		Choices: choices,
	}
}

func rateLimitErr() error {
	return &APIError{Kind: KindRateLimited, StatusCode: 429, Err: io.ErrShortWrite}
}
