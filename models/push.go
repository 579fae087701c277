package models

import (
	"github.com/SherClockHolmes/webpush-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PushSubscription is one browser push endpoint per caller identity.
type PushSubscription struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID    string               `bson:"userId" json:"userId"`
	Sub       webpush.Subscription `bson:"sub" json:"sub"`
	UpdatedAt int64                `bson:"updatedAt" json:"updatedAt"`
}
