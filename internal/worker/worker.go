package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/mailer"
	"github.com/beetopic/backend/pkg/queue"
)

// JobSource yields receipt jobs and takes back failed ones.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LogStore persists delivery outcomes.
type LogStore interface {
	Record(ctx context.Context, n *models.NotificationLog) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status, errMsg string) error
}

// Sender delivers email.
type Sender interface {
	Enabled() bool
	Send(ctx context.Context, msg mailer.Message) error
}

// ReceiptProcessor delivers redemption receipts: record the log row, send the email, record the outcome.
type ReceiptProcessor struct {
	jobs    JobSource
	logs    LogStore
	sender  Sender
	backoff time.Duration
	logger  *zap.Logger
}

// NewReceiptProcessor creates a receipt processor.
func NewReceiptProcessor(jobs JobSource, logs LogStore, sender Sender, logger *zap.Logger) *ReceiptProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptProcessor{jobs: jobs, logs: logs, sender: sender, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one receipt job.
func (p *ReceiptProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := queue.DecodeReceipt(job)
	if err != nil {
		return err
	}

	couponID := payload.CouponID
	entry := &models.NotificationLog{
		JobID:          job.ID,
		ChannelID:      payload.ChannelID,
		CouponID:       &couponID,
		SubscriberID:   payload.SubscriberID,
		RecipientEmail: payload.RecipientEmail,
		Kind:           models.NotificationKindRedemptionReceipt,
	}
	if err := p.logs.Record(ctx, entry); err != nil {
		return err
	}

	if !p.sender.Enabled() {
		p.logger.Info("smtp not configured, receipt skipped", zap.String("job_id", job.ID))
		return p.logs.UpdateStatus(ctx, entry.ID, models.NotificationStatusSkipped, "smtp not configured")
	}

	if err := p.sender.Send(ctx, receiptMessage(payload)); err != nil {
		if upErr := p.logs.UpdateStatus(ctx, entry.ID, models.NotificationStatusFailed, err.Error()); upErr != nil {
			p.logger.Error("update notification status failed", zap.Error(upErr), zap.String("job_id", job.ID))
		}
		return fmt.Errorf("send receipt: %w", err)
	}
	if err := p.logs.UpdateStatus(ctx, entry.ID, models.NotificationStatusSent, ""); err != nil {
		return err
	}

	p.logger.Info("receipt sent",
		zap.String("job_id", job.ID),
		zap.String("coupon_id", payload.CouponID.String()),
		zap.String("subscriber_id", payload.SubscriberID),
	)
	return nil
}

func receiptMessage(p queue.ReceiptPayload) mailer.Message {
	return mailer.Message{
		To:      p.RecipientEmail,
		Subject: fmt.Sprintf("Coupon %s redeemed", p.CouponCode),
		Body: fmt.Sprintf("Your coupon %s has been applied.\nYour subscription is active until %s.\n",
			p.CouponCode, p.EndsOn.Format("January 2, 2006")),
	}
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *ReceiptProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("receipt worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.wait(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.wait(ctx)
		}
	}
}

func (p *ReceiptProcessor) wait(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
