package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockSubscriptions struct {
	mock.Mock
}

func (m *mockSubscriptions) Save(ctx context.Context, userID string, sub webpush.Subscription) error {
	return m.Called(ctx, userID, sub).Error(0)
}

func newPushRouter(h *PushHandler) *gin.Engine {
	r := gin.New()
	r.GET("/push/vapid-public-key", h.GetVapidPublicKey)
	r.POST("/push/subscribe", func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set("userId", id)
		}
	}, h.SubscribePush)
	return r
}

func TestGetVapidPublicKey(t *testing.T) {
	w := do(newPushRouter(NewPushHandler(nil, "BPUBLIC")), http.MethodGet, "/push/vapid-public-key", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BPUBLIC", decodeBody(t, w)["publicKey"])

	w = do(newPushRouter(NewPushHandler(nil, "")), http.MethodGet, "/push/vapid-public-key", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSubscribePush(t *testing.T) {
	subs := new(mockSubscriptions)
	r := newPushRouter(NewPushHandler(subs, "BPUBLIC"))

	want := webpush.Subscription{
		Endpoint: "https://push.example.com/abc",
		Keys:     webpush.Keys{P256dh: "p256", Auth: "auth"},
	}
	subs.On("Save", mock.Anything, "u1", want).Return(nil)

	body := `{"endpoint":"https://push.example.com/abc","keys":{"p256dh":"p256","auth":"auth"}}`
	w := do(r, http.MethodPost, "/push/subscribe", body, "u1")
	assert.Equal(t, http.StatusCreated, w.Code)
	subs.AssertExpectations(t)

	w = do(r, http.MethodPost, "/push/subscribe", `{"endpoint":"https://push.example.com/abc"}`, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/push/subscribe", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
