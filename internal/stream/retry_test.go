package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRetryHandler(client redis.Cmdable) *RetryHandler {
	return &RetryHandler{
		client:        client,
		deadLetterKey: "test:dlq",
		maxAttempts:   3,
		baseDelay:     time.Millisecond,
		maxDelay:      5 * time.Millisecond,
	}
}

func Test_RetryWithBackoff_SucceedsAfterFailures(t *testing.T) {
	h := newTestRetryHandler(&fakeRedis{})

	calls := 0
	err := h.RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, "1-0", nil)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func Test_RetryWithBackoff_Cancelled(t *testing.T) {
	h := newTestRetryHandler(&fakeRedis{})
	h.baseDelay = time.Hour
	h.maxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := h.RetryWithBackoff(ctx, func() error {
		calls++
		cancel()
		return errors.New("transient")
	}, "1-0", nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func Test_Backoff(t *testing.T) {
	h := &RetryHandler{baseDelay: 100 * time.Millisecond, maxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, h.backoff(1))
	assert.Equal(t, 200*time.Millisecond, h.backoff(2))
	assert.Equal(t, 400*time.Millisecond, h.backoff(3))
	assert.Equal(t, time.Second, h.backoff(5))
	assert.Equal(t, time.Second, h.backoff(80))
}

func Test_RetryWithBackoff_DeadLetter(t *testing.T) {
	fake := &fakeRedis{}
	h := newTestRetryHandler(fake)

	calls := 0
	err := h.RetryWithBackoff(context.Background(), func() error {
		calls++
		return errors.New("mongo unavailable")
	}, "7-0", map[string]interface{}{"checkId": "chk-7", "text": "body"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo unavailable")
	assert.Equal(t, 3, calls)

	entries := fake.deadLetters(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "test:dlq", entries[0].stream)
	assert.Equal(t, "7-0", entries[0].values["original_id"])
	assert.Equal(t, "mongo unavailable", entries[0].values["error"])
	assert.Equal(t, "chk-7", entries[0].values["checkId"])
	assert.NotEmpty(t, entries[0].values["failed_at"])
}

func Test_RetryWithBackoff_DeadLetterWriteFails(t *testing.T) {
	fake := &fakeRedis{addErr: errors.New("redis down")}
	h := newTestRetryHandler(fake)

	err := h.RetryWithBackoff(context.Background(), func() error {
		return errors.New("boom")
	}, "8-0", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
