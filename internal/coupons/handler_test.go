package coupons

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beetopic/backend/internal/channels"
	"github.com/beetopic/backend/internal/models"
)

type memStore struct {
	coupons     map[uuid.UUID]*models.Coupon
	emails      map[uuid.UUID][]string
	redemptions map[uuid.UUID]int
}

func newMemStore() *memStore {
	return &memStore{
		coupons:     make(map[uuid.UUID]*models.Coupon),
		emails:      make(map[uuid.UUID][]string),
		redemptions: make(map[uuid.UUID]int),
	}
}

func (m *memStore) Create(_ context.Context, def Definition) (*models.Coupon, error) {
	c, emails, err := def.Normalize()
	if err != nil {
		return nil, err
	}
	for _, existing := range m.coupons {
		if existing.ChannelID == c.ChannelID && existing.Code == c.Code {
			return nil, ErrCodeTaken
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	m.coupons[c.ID] = c
	m.emails[c.ID] = emails
	return c, nil
}

func (m *memStore) ListByChannel(_ context.Context, channelID uuid.UUID) ([]Summary, error) {
	list := []Summary{}
	for _, c := range m.coupons {
		if c.ChannelID == channelID {
			list = append(list, Summary{Coupon: *c, Redemptions: m.redemptions[c.ID]})
		}
	}
	return list, nil
}

func (m *memStore) Get(_ context.Context, channelID, couponID uuid.UUID) (*Detail, error) {
	c, ok := m.coupons[couponID]
	if !ok || c.ChannelID != channelID {
		return nil, ErrNotFound
	}
	return &Detail{Coupon: *c, Emails: m.emails[couponID], Redemptions: m.redemptions[couponID]}, nil
}

func (m *memStore) Delete(_ context.Context, channelID, couponID uuid.UUID) error {
	c, ok := m.coupons[couponID]
	if !ok || c.ChannelID != channelID {
		return ErrNotFound
	}
	if m.redemptions[couponID] > 0 {
		return ErrHasRedemptions
	}
	delete(m.coupons, couponID)
	return nil
}

func setup() (*gin.Engine, *memStore, *models.Channel) {
	return setupIn(nil)
}

func setupIn(loc *time.Location) (*gin.Engine, *memStore, *models.Channel) {
	gin.SetMode(gin.TestMode)
	store := newMemStore()
	ch := &models.Channel{ID: uuid.New(), Slug: "bees", OwnerID: "user_owner"}
	h := NewHandler(store, loc, nil)
	r := gin.New()
	g := r.Group("/channels/:id", func(c *gin.Context) {
		c.Set(channels.ContextChannel, ch)
		c.Next()
	})
	g.POST("/coupons", h.Create)
	g.GET("/coupons", h.List)
	g.GET("/coupons/:couponId", h.Get)
	g.DELETE("/coupons/:couponId", h.Delete)
	return r, store, ch
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const save50 = `{"code":"save50","starts_on":"2024-01-01T00:00:00Z","ends_on":"2024-01-31T00:00:00Z",
	"policy":"open","max_users_count_for_open":2,"frequency":"monthly","term_count":1}`

func TestCreateCoupon(t *testing.T) {
	r, store, ch := setup()
	base := "/channels/" + ch.ID.String() + "/coupons"

	w := do(r, http.MethodPost, base, save50)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Data models.Coupon `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SAVE50", body.Data.Code)
	assert.Len(t, store.coupons, 1)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, base, save50).Code)
}

func TestCreateCouponValidation(t *testing.T) {
	r, _, ch := setup()
	base := "/channels/" + ch.ID.String() + "/coupons"

	w := do(r, http.MethodPost, base, `{"code":"x","policy":"public","frequency":"monthly","term_count":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, base, `{"code":"x","policy":"restricted","frequency":"monthly","term_count":1,
		"starts_on":"2024-01-01T00:00:00Z","ends_on":"2024-01-31T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "emails")
}

func TestGetListDeleteCoupon(t *testing.T) {
	r, store, ch := setup()
	base := "/channels/" + ch.ID.String() + "/coupons"
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, base, save50).Code)

	var id uuid.UUID
	for k := range store.coupons {
		id = k
	}

	w := do(r, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redemptions":0`)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, base+"/"+id.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, base+"/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, base+"/bad", "").Code)

	store.redemptions[id] = 1
	assert.Equal(t, http.StatusConflict, do(r, http.MethodDelete, base+"/"+id.String(), "").Code)

	store.redemptions[id] = 0
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, base+"/"+id.String(), "").Code)
	assert.Empty(t, store.coupons)
}

func TestCreateCouponDateOnlyUsesBusinessZone(t *testing.T) {
	ny := time.FixedZone("EST", -5*3600)
	r, store, ch := setupIn(ny)
	body := `{"code":"winter","starts_on":"2024-01-01","ends_on":"2024-01-31",
		"policy":"open","max_users_count_for_open":5,"frequency":"monthly","term_count":1}`

	w := do(r, http.MethodPost, "/channels/"+ch.ID.String()+"/coupons", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, store.coupons, 1)
	for _, c := range store.coupons {
		y, m, d := c.EndsOn.In(ny).Date()
		assert.Equal(t, 2024, y)
		assert.Equal(t, time.January, m)
		assert.Equal(t, 31, d)
		assert.True(t, c.StartsOn.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, ny)))
	}
}

func TestCreateCouponRejectsBadDate(t *testing.T) {
	r, _, ch := setup()
	body := `{"code":"x","starts_on":"01/01/2024","ends_on":"2024-01-31",
		"policy":"open","max_users_count_for_open":5,"frequency":"monthly","term_count":1}`

	w := do(r, http.MethodPost, "/channels/"+ch.ID.String()+"/coupons", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "starts_on")
}
