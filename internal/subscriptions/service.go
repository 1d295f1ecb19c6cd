package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beetopic/backend/internal/coupons"
	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/queue"
)

// CouponStore is the read-only coupon lookup the engine validates against.
// Missing rows are reported as coupons.ErrNotFound.
type CouponStore interface {
	FindCoupon(ctx context.Context, channelID uuid.UUID, code string) (*models.Coupon, error)
	CountRedemptions(ctx context.Context, couponID uuid.UUID) (int, error)
	FindAllowListEntry(ctx context.Context, couponID uuid.UUID, email string) (*models.CouponEmail, error)
}

// Ledger stores subscriptions and redemption transactions.
type Ledger interface {
	HasTransaction(ctx context.Context, couponID uuid.UUID, subscriberID string) (bool, error)
	GetSubscription(ctx context.Context, channelID uuid.UUID, subscriberID string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	PauseSubscription(ctx context.Context, channelID uuid.UUID, subscriberID string) (*models.Subscription, error)
	ListBySubscriber(ctx context.Context, subscriberID string) ([]models.Subscription, error)
	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.Subscription, error)
	ListTransactions(ctx context.Context, channelID uuid.UUID) ([]models.Transaction, error)
	// RunInTx commits every write made through tx, or none of them if fn fails.
	RunInTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the write surface available inside a redemption commit.
type LedgerTx interface {
	// LockCoupon serializes concurrent commits against the same coupon.
	LockCoupon(ctx context.Context, couponID uuid.UUID) error
	CountRedemptions(ctx context.Context, couponID uuid.UUID) (int, error)
	// InsertTransaction returns ErrCouponAlreadyUsed when (coupon, subscriber) already exists.
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
}

// Notifier receives redemption receipts after commit.
type Notifier interface {
	EnqueueReceipt(ctx context.Context, payload queue.ReceiptPayload) error
}

// Subscriber is the identity-provider view of the caller.
type Subscriber struct {
	ID    string
	Email string // verified; used for restricted coupons
}

// Redemption is the outcome of a successful coupon redemption.
type Redemption struct {
	Coupon       *models.Coupon       `json:"coupon"`
	Subscription *models.Subscription `json:"subscription"`
}

// View pairs a subscription with its derived status.
type View struct {
	Subscription *models.Subscription     `json:"subscription"`
	Status       models.SubscriptionStatus `json:"status"`
}

// Options configure a Service.
type Options struct {
	TrialDays int
	Location  *time.Location   // calendar-day boundaries; defaults to UTC
	Now       func() time.Time // defaults to time.Now
	Notifier  Notifier         // optional
}

// Service is the redemption engine and the only writer of the entitlement ledger.
type Service struct {
	coupons   CouponStore
	ledger    Ledger
	notifier  Notifier
	trialDays int
	loc       *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates the subscription service.
func NewService(couponStore CouponStore, ledger Ledger, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TrialDays <= 0 {
		opts.TrialDays = 30
	}
	return &Service{
		coupons:   couponStore,
		ledger:    ledger,
		notifier:  opts.Notifier,
		trialDays: opts.TrialDays,
		loc:       opts.Location,
		now:       opts.Now,
		logger:    logger,
	}
}

// Redeem validates code for subscriber on channelID and, if every check passes,
// records the redemption and grants or extends the subscription atomically.
// Validation performs no writes.
func (s *Service) Redeem(ctx context.Context, channelID uuid.UUID, code string, sub Subscriber) (*Redemption, error) {
	coupon, err := s.coupons.FindCoupon(ctx, channelID, code)
	if errors.Is(err, coupons.ErrNotFound) {
		return nil, ErrInvalidCoupon
	}
	if err != nil {
		return nil, fmt.Errorf("lookup coupon: %w", err)
	}

	now := s.now().In(s.loc)
	if EndOfDay(now, s.loc).After(EndOfDay(coupon.EndsOn, s.loc)) {
		return nil, ErrCouponExpired
	}

	used, err := s.ledger.HasTransaction(ctx, coupon.ID, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("check reuse: %w", err)
	}
	if used {
		return nil, ErrCouponAlreadyUsed
	}

	if err := s.checkPolicy(ctx, coupon, sub); err != nil {
		return nil, err
	}

	subscription := &models.Subscription{
		ChannelID:    channelID,
		SubscriberID: sub.ID,
		StartsOn:     now,
		EndsOn:       EndOfDay(AddTerm(now, coupon.Frequency, coupon.TermCount), s.loc),
		IsPaused:     false,
	}
	err = s.ledger.RunInTx(ctx, func(tx LedgerTx) error {
		open := coupon.Policy == models.PolicyOpen
		if open {
			if err := tx.LockCoupon(ctx, coupon.ID); err != nil {
				return fmt.Errorf("lock coupon: %w", err)
			}
		}
		// Reuse is settled before the cap: a subscriber who already holds a
		// redemption gets ErrCouponAlreadyUsed even when the coupon is full.
		if err := tx.InsertTransaction(ctx, &models.Transaction{
			ChannelID:    channelID,
			SubscriberID: sub.ID,
			CouponID:     coupon.ID,
		}); err != nil {
			return err
		}
		if open {
			n, err := tx.CountRedemptions(ctx, coupon.ID)
			if err != nil {
				return fmt.Errorf("recount redemptions: %w", err)
			}
			// n includes the row just inserted; rollback discards it.
			if n > openLimit(coupon) {
				return ErrCouponExhausted
			}
		}
		return tx.UpsertSubscription(ctx, subscription)
	})
	if err != nil {
		if errors.Is(err, ErrCouponAlreadyUsed) || errors.Is(err, ErrCouponExhausted) {
			s.logger.Info("redemption lost commit race",
				zap.String("coupon_id", coupon.ID.String()),
				zap.String("subscriber_id", sub.ID),
				zap.Error(err),
			)
			return nil, err
		}
		return nil, fmt.Errorf("commit redemption: %w", err)
	}

	s.logger.Info("coupon redeemed",
		zap.String("channel_id", channelID.String()),
		zap.String("coupon_id", coupon.ID.String()),
		zap.String("subscriber_id", sub.ID),
		zap.Time("ends_on", subscription.EndsOn),
	)
	s.sendReceipt(ctx, coupon, subscription, sub)
	return &Redemption{Coupon: coupon, Subscription: subscription}, nil
}

func (s *Service) checkPolicy(ctx context.Context, coupon *models.Coupon, sub Subscriber) error {
	switch coupon.Policy {
	case models.PolicyOpen:
		n, err := s.coupons.CountRedemptions(ctx, coupon.ID)
		if err != nil {
			return fmt.Errorf("count redemptions: %w", err)
		}
		if n >= openLimit(coupon) {
			return ErrCouponExhausted
		}
		return nil
	case models.PolicyRestricted:
		if sub.Email == "" {
			return ErrCouponNotAuthorized
		}
		_, err := s.coupons.FindAllowListEntry(ctx, coupon.ID, sub.Email)
		if errors.Is(err, coupons.ErrNotFound) {
			return ErrCouponNotAuthorized
		}
		if err != nil {
			return fmt.Errorf("check allow-list: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("coupon %s has unknown policy %q", coupon.ID, coupon.Policy)
	}
}

func openLimit(c *models.Coupon) int {
	if c.MaxUsersCountForOpen == nil {
		return 0
	}
	return *c.MaxUsersCountForOpen
}

func (s *Service) sendReceipt(ctx context.Context, coupon *models.Coupon, subscription *models.Subscription, sub Subscriber) {
	if s.notifier == nil || sub.Email == "" {
		return
	}
	err := s.notifier.EnqueueReceipt(ctx, queue.ReceiptPayload{
		ChannelID:      coupon.ChannelID,
		CouponID:       coupon.ID,
		CouponCode:     coupon.Code,
		SubscriberID:   sub.ID,
		RecipientEmail: sub.Email,
		EndsOn:         subscription.EndsOn,
	})
	if err != nil {
		s.logger.Warn("enqueue receipt failed", zap.Error(err), zap.String("coupon_id", coupon.ID.String()))
	}
}

// Subscribe starts a fixed-length trial subscription with no coupon bookkeeping.
func (s *Service) Subscribe(ctx context.Context, channelID uuid.UUID, subscriberID string) (*models.Subscription, error) {
	now := s.now().In(s.loc)
	sub := &models.Subscription{
		ChannelID:    channelID,
		SubscriberID: subscriberID,
		StartsOn:     now,
		EndsOn:       now.Add(time.Duration(s.trialDays) * 24 * time.Hour),
	}
	if err := s.ledger.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	s.logger.Info("trial subscription started",
		zap.String("channel_id", channelID.String()),
		zap.String("subscriber_id", subscriberID),
	)
	return sub, nil
}

// Pause soft-cancels a subscription. The row is kept so renewal can resume it.
func (s *Service) Pause(ctx context.Context, channelID uuid.UUID, subscriberID string) (*models.Subscription, error) {
	sub, err := s.ledger.PauseSubscription(ctx, channelID, subscriberID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("subscription paused",
		zap.String("channel_id", channelID.String()),
		zap.String("subscriber_id", subscriberID),
	)
	return sub, nil
}

// Get returns the subscriber's subscription to channelID with its status.
// A subscriber who never subscribed gets status none and no error.
func (s *Service) Get(ctx context.Context, channelID uuid.UUID, subscriberID string) (View, error) {
	sub, err := s.ledger.GetSubscription(ctx, channelID, subscriberID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return View{Status: models.StatusNone}, nil
	}
	if err != nil {
		return View{}, err
	}
	return View{Subscription: sub, Status: models.StatusOf(sub, s.now())}, nil
}

// ListMine returns every subscription of subscriberID.
func (s *Service) ListMine(ctx context.Context, subscriberID string) ([]View, error) {
	subs, err := s.ledger.ListBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	return s.views(subs), nil
}

// ListChannel returns every subscription to channelID.
func (s *Service) ListChannel(ctx context.Context, channelID uuid.UUID) ([]View, error) {
	subs, err := s.ledger.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return s.views(subs), nil
}

// ListTransactions returns the redemption ledger of channelID.
func (s *Service) ListTransactions(ctx context.Context, channelID uuid.UUID) ([]models.Transaction, error) {
	return s.ledger.ListTransactions(ctx, channelID)
}

func (s *Service) views(subs []models.Subscription) []View {
	now := s.now()
	out := make([]View, 0, len(subs))
	for i := range subs {
		out = append(out, View{Subscription: &subs[i], Status: models.StatusOf(&subs[i], now)})
	}
	return out
}
