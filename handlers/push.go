package handlers

import (
	"context"
	"log"
	"net/http"

	"memories/middleware"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
)

type subscriptionStore interface {
	Save(ctx context.Context, userID string, sub webpush.Subscription) error
}

type PushHandler struct {
	subs      subscriptionStore
	publicKey string
}

func NewPushHandler(subs subscriptionStore, vapidPublicKey string) *PushHandler {
	return &PushHandler{subs: subs, publicKey: vapidPublicKey}
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

func (h *PushHandler) GetVapidPublicKey(c *gin.Context) {
	if h.publicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Push notifications are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"publicKey": h.publicKey})
}

func (h *PushHandler) SubscribePush(c *gin.Context) {
	if h.publicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Push notifications are not configured"})
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	sub := webpush.Subscription{
		Endpoint: req.Endpoint,
		Keys: webpush.Keys{
			P256dh: req.Keys.P256dh,
			Auth:   req.Keys.Auth,
		},
	}
	if err := h.subs.Save(ctx, userID, sub); err != nil {
		logError(c, "SubscribePush", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to save subscription"})
		return
	}

	log.Printf("Push subscription saved for user: %s", userID)
	c.JSON(http.StatusCreated, gin.H{"message": "Push subscription saved successfully"})
}
