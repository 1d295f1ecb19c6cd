package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueDequeueReceipt(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	payload := ReceiptPayload{
		ChannelID:      uuid.New(),
		CouponID:       uuid.New(),
		CouponCode:     "SAVE50",
		SubscriberID:   "user_1",
		RecipientEmail: "reader@example.com",
		EndsOn:         time.Date(2024, 2, 15, 23, 59, 59, 0, time.UTC),
	}
	require.NoError(t, q.EnqueueReceipt(ctx, payload))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeRedemptionReceipt, job.Type)
	assert.Equal(t, 0, job.Attempt)

	got, err := DecodeReceipt(job)
	require.NoError(t, err)
	assert.Equal(t, payload.CouponCode, got.CouponCode)
	assert.Equal(t, payload.ChannelID, got.ChannelID)
	assert.True(t, payload.EndsOn.Equal(got.EndsOn))
}

func TestRetryThenDeadLetter(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.EnqueueReceipt(ctx, ReceiptPayload{CouponCode: "X"}))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)

	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
		assert.Equal(t, i, job.Attempt)
		requeued, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, requeued)
		job = requeued
	}

	require.NoError(t, q.Retry(ctx, job))
	dlq, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	assert.Len(t, dlq, 1)
	assert.False(t, mr.Exists(QueueReceipts))
}

func TestDecodeReceiptRejectsUnknownType(t *testing.T) {
	_, err := DecodeReceipt(&Job{Type: "mystery"})
	assert.Error(t, err)
}

func TestDequeueSkipsGarbage(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.RPush(QueueReceipts, "not json")
	require.NoError(t, err)

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDequeueEmptyReturnsAfterPoll(t *testing.T) {
	q, _ := newTestQueue(t)
	q.PollTimeout = 0 // raised to the one-second floor

	start := time.Now()
	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.Less(t, time.Since(start), 3*time.Second)
}
