package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueReceipts is the Redis list key for redemption receipt jobs.
	QueueReceipts = "worker:receipts"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// DefaultPollTimeout bounds each blocking pop. BLPOP counts whole seconds.
	DefaultPollTimeout = time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeRedemptionReceipt JobType = "redemption_receipt"
)

// ReceiptPayload describes a successful redemption to acknowledge to the subscriber.
type ReceiptPayload struct {
	ChannelID      uuid.UUID `json:"channel_id"`
	CouponID       uuid.UUID `json:"coupon_id"`
	CouponCode     string    `json:"coupon_code"`
	SubscriberID   string    `json:"subscriber_id"`
	RecipientEmail string    `json:"recipient_email"`
	EndsOn         time.Time `json:"ends_on"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
	// PollTimeout is how long Dequeue blocks on an empty list; it caps how late the consumer sees cancellation.
	PollTimeout time.Duration
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger, PollTimeout: DefaultPollTimeout}
}

// EnqueueReceipt enqueues a redemption receipt job.
func (q *Queue) EnqueueReceipt(ctx context.Context, payload ReceiptPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeRedemptionReceipt,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueReceipts, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued receipt job", zap.String("job_id", job.ID), zap.String("coupon_id", payload.CouponID.String()))
	return nil
}

// Dequeue blocks until a job is available, the poll times out, or ctx is done.
// A nil job with nil error means nothing was available.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	timeout := q.PollTimeout
	if timeout < time.Second {
		timeout = time.Second
	}
	result, err := q.client.BLPop(ctx, timeout, QueueReceipts).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueReceipts, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// DecodeReceipt extracts the receipt payload of a receipt job.
func DecodeReceipt(job *Job) (ReceiptPayload, error) {
	var p ReceiptPayload
	if job.Type != JobTypeRedemptionReceipt {
		return p, fmt.Errorf("unknown job type: %s", job.Type)
	}
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}
