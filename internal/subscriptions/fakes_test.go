package subscriptions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beetopic/backend/internal/coupons"
	"github.com/beetopic/backend/internal/models"
	"github.com/beetopic/backend/pkg/queue"
)

type subKey struct {
	channelID    uuid.UUID
	subscriberID string
}

// memLedger keeps subscriptions and transactions in memory. RunInTx stages
// writes on a copy and publishes them only when fn succeeds.
type memLedger struct {
	mu   sync.Mutex
	subs map[subKey]models.Subscription
	txs  []models.Transaction

	// failUpsert is returned by UpsertSubscription when set.
	failUpsert error
	// beforeCommit runs before RunInTx takes the lock, to simulate a concurrent commit.
	beforeCommit func(l *memLedger)
}

func newMemLedger() *memLedger {
	return &memLedger{subs: make(map[subKey]models.Subscription)}
}

func (l *memLedger) put(tx models.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx.ID = uuid.New()
	l.txs = append(l.txs, tx)
}

func (l *memLedger) transactions() []models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Transaction(nil), l.txs...)
}

func (l *memLedger) subscription(channelID uuid.UUID, subscriberID string) (models.Subscription, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.subs[subKey{channelID, subscriberID}]
	return s, ok
}

func (l *memLedger) countFor(couponID uuid.UUID) int {
	n := 0
	for _, t := range l.txs {
		if t.CouponID == couponID {
			n++
		}
	}
	return n
}

func (l *memLedger) HasTransaction(_ context.Context, couponID uuid.UUID, subscriberID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.txs {
		if t.CouponID == couponID && t.SubscriberID == subscriberID {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) GetSubscription(_ context.Context, channelID uuid.UUID, subscriberID string) (*models.Subscription, error) {
	s, ok := l.subscription(channelID, subscriberID)
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &s, nil
}

func (l *memLedger) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := subKey{sub.ChannelID, sub.SubscriberID}
	if _, ok := l.subs[k]; ok {
		return ErrAlreadySubscribed
	}
	sub.ID = uuid.New()
	l.subs[k] = *sub
	return nil
}

func (l *memLedger) PauseSubscription(_ context.Context, channelID uuid.UUID, subscriberID string) (*models.Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := subKey{channelID, subscriberID}
	s, ok := l.subs[k]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	s.IsPaused = true
	l.subs[k] = s
	return &s, nil
}

func (l *memLedger) ListBySubscriber(_ context.Context, subscriberID string) ([]models.Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.Subscription{}
	for k, s := range l.subs {
		if k.subscriberID == subscriberID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *memLedger) ListByChannel(_ context.Context, channelID uuid.UUID) ([]models.Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.Subscription{}
	for k, s := range l.subs {
		if k.channelID == channelID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *memLedger) ListTransactions(_ context.Context, channelID uuid.UUID) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.Transaction{}
	for _, t := range l.txs {
		if t.ChannelID == channelID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *memLedger) RunInTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	if l.beforeCommit != nil {
		l.beforeCommit(l)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := &memTx{
		parent: l,
		subs:   make(map[subKey]models.Subscription, len(l.subs)),
		txs:    append([]models.Transaction(nil), l.txs...),
	}
	for k, v := range l.subs {
		staged.subs[k] = v
	}
	if err := fn(staged); err != nil {
		return err
	}
	l.subs = staged.subs
	l.txs = staged.txs
	return nil
}

type memTx struct {
	parent *memLedger
	subs   map[subKey]models.Subscription
	txs    []models.Transaction
}

func (t *memTx) LockCoupon(context.Context, uuid.UUID) error { return nil }

func (t *memTx) CountRedemptions(_ context.Context, couponID uuid.UUID) (int, error) {
	n := 0
	for _, x := range t.txs {
		if x.CouponID == couponID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertTransaction(_ context.Context, tx *models.Transaction) error {
	for _, x := range t.txs {
		if x.CouponID == tx.CouponID && x.SubscriberID == tx.SubscriberID {
			return ErrCouponAlreadyUsed
		}
	}
	tx.ID = uuid.New()
	tx.CreatedAt = time.Now()
	t.txs = append(t.txs, *tx)
	return nil
}

func (t *memTx) UpsertSubscription(_ context.Context, sub *models.Subscription) error {
	if t.parent.failUpsert != nil {
		return t.parent.failUpsert
	}
	k := subKey{sub.ChannelID, sub.SubscriberID}
	if existing, ok := t.subs[k]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = uuid.New()
	}
	sub.IsPaused = false
	t.subs[k] = *sub
	return nil
}

// memCoupons serves coupons by (channel, code) and counts redemptions from the ledger.
type memCoupons struct {
	ledger  *memLedger
	coupons []*models.Coupon
	allow   map[uuid.UUID][]string
}

func (m *memCoupons) add(c *models.Coupon, emails ...string) *models.Coupon {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.coupons = append(m.coupons, c)
	if m.allow == nil {
		m.allow = make(map[uuid.UUID][]string)
	}
	m.allow[c.ID] = emails
	return c
}

func (m *memCoupons) FindCoupon(_ context.Context, channelID uuid.UUID, code string) (*models.Coupon, error) {
	code = coupons.NormalizeCode(code)
	for _, c := range m.coupons {
		if c.ChannelID == channelID && c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, coupons.ErrNotFound
}

func (m *memCoupons) CountRedemptions(_ context.Context, couponID uuid.UUID) (int, error) {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	return m.ledger.countFor(couponID), nil
}

func (m *memCoupons) FindAllowListEntry(_ context.Context, couponID uuid.UUID, email string) (*models.CouponEmail, error) {
	email = coupons.NormalizeEmail(email)
	for _, e := range m.allow[couponID] {
		if e == email {
			return &models.CouponEmail{ID: uuid.New(), CouponID: couponID, Email: e}, nil
		}
	}
	return nil, coupons.ErrNotFound
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []queue.ReceiptPayload
	err      error
}

func (n *recordingNotifier) EnqueueReceipt(_ context.Context, p queue.ReceiptPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.payloads = append(n.payloads, p)
	return nil
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
