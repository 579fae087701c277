package database

import (
	"context"
	"time"

	"memories/models"

	"github.com/SherClockHolmes/webpush-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SubscriptionRepository struct {
	coll *mongo.Collection
}

func NewSubscriptionRepository(coll *mongo.Collection) *SubscriptionRepository {
	return &SubscriptionRepository{coll: coll}
}

// Save upserts sub for userID. A user may have one subscription per endpoint.
func (r *SubscriptionRepository) Save(ctx context.Context, userID string, sub webpush.Subscription) error {
	_, err := r.coll.UpdateOne(
		ctx,
		bson.M{"userId": userID, "sub.endpoint": sub.Endpoint},
		bson.M{"$set": bson.M{
			"userId":    userID,
			"sub":       sub,
			"updatedAt": time.Now().Unix(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *SubscriptionRepository) ForUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subs []models.PushSubscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, userID, endpoint string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"userId": userID, "sub.endpoint": endpoint})
	return err
}
