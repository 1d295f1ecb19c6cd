package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beetopic/backend/internal/channels"
	"github.com/beetopic/backend/internal/coupons"
	"github.com/beetopic/backend/internal/models"
)

type subsFunc func(ctx context.Context, channelID uuid.UUID) ([]models.Subscription, error)

func (f subsFunc) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.Subscription, error) {
	return f(ctx, channelID)
}

type couponsFunc func(ctx context.Context, channelID uuid.UUID) ([]coupons.Summary, error)

func (f couponsFunc) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]coupons.Summary, error) {
	return f(ctx, channelID)
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixtures() ([]models.Subscription, []coupons.Summary) {
	future := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)
	subs := []models.Subscription{
		{SubscriberID: "a", EndsOn: future},
		{SubscriberID: "b", EndsOn: future},
		{SubscriberID: "c", EndsOn: future, IsPaused: true},
		{SubscriberID: "d", EndsOn: past},
		{SubscriberID: "e", EndsOn: past, IsPaused: true},
	}
	cap2 := 2
	list := []coupons.Summary{
		{Coupon: models.Coupon{ID: uuid.New(), Code: "SAVE50", Policy: models.PolicyOpen, MaxUsersCountForOpen: &cap2}, Redemptions: 2},
		{Coupon: models.Coupon{ID: uuid.New(), Code: "VIP", Policy: models.PolicyRestricted}, Redemptions: 1},
	}
	return subs, list
}

func TestSummarize(t *testing.T) {
	subs, list := fixtures()
	s := Summarize(subs, list, now)

	assert.Equal(t, 5, s.TotalSubscriptions)
	assert.Equal(t, 2, s.Active)
	assert.Equal(t, 1, s.Paused)
	assert.Equal(t, 2, s.Expired)
	assert.Equal(t, 3, s.TotalRedemptions)

	require.Len(t, s.Coupons, 2)
	require.NotNil(t, s.Coupons[0].Remaining)
	assert.Equal(t, 0, *s.Coupons[0].Remaining)
	assert.Nil(t, s.Coupons[1].Remaining)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil, now)
	assert.Zero(t, s.TotalSubscriptions)
	assert.NotNil(t, s.Coupons)
}

func serve(h *Handler, ch *models.Channel) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/channels/:id/analytics", func(c *gin.Context) {
		c.Set(channels.ContextChannel, ch)
		c.Next()
	}, h.GetByChannel)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/channels/"+ch.ID.String()+"/analytics", nil))
	return w
}

func TestGetByChannel(t *testing.T) {
	ch := &models.Channel{ID: uuid.New()}
	subs, list := fixtures()
	var gotSubs, gotCoupons uuid.UUID
	h := NewHandler(
		subsFunc(func(_ context.Context, id uuid.UUID) ([]models.Subscription, error) { gotSubs = id; return subs, nil }),
		couponsFunc(func(_ context.Context, id uuid.UUID) ([]coupons.Summary, error) { gotCoupons = id; return list, nil }),
		nil,
	)
	h.now = func() time.Time { return now }

	w := serve(h, ch)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ch.ID, gotSubs)
	assert.Equal(t, ch.ID, gotCoupons)

	var body struct {
		Data SummaryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.Active)
	assert.Equal(t, 3, body.Data.TotalRedemptions)
}

func TestGetByChannelError(t *testing.T) {
	ch := &models.Channel{ID: uuid.New()}
	h := NewHandler(
		subsFunc(func(context.Context, uuid.UUID) ([]models.Subscription, error) { return nil, errors.New("boom") }),
		couponsFunc(func(context.Context, uuid.UUID) ([]coupons.Summary, error) { return nil, nil }),
		nil,
	)
	w := serve(h, ch)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
