package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DB holds the client and the collections the server uses.
type DB struct {
	Client            *mongo.Client
	Posts             *mongo.Collection
	Users             *mongo.Collection
	PushSubscriptions *mongo.Collection
}

func ConnectMongo(uri, dbName string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping MongoDB
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(dbName)

	log.Printf("Connected to MongoDB database %q", dbName)
	return &DB{
		Client:            client,
		Posts:             db.Collection("posts"),
		Users:             db.Collection("users"),
		PushSubscriptions: db.Collection("push_subscriptions"),
	}, nil
}

// ConnectWithRetry tries ConnectMongo up to attempts times.
func ConnectWithRetry(uri, dbName string, attempts int, wait time.Duration) (*DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := ConnectMongo(uri, dbName)
		if err == nil {
			return db, nil
		}
		lastErr = err
		log.Printf("❌ MongoDB connection attempt %d failed: %v", i, err)
		if i < attempts {
			time.Sleep(wait)
		}
	}
	return nil, lastErr
}

// EnsureIndexes creates the indexes the queries rely on. Creating an index
// that already exists is a no-op.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	_, err := d.Posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "creator", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = d.Users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	if err != nil {
		return err
	}

	_, err = d.PushSubscriptions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "sub.endpoint", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (d *DB) Disconnect() error {
	if d == nil || d.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.Client.Disconnect(ctx); err != nil {
		return err
	}

	log.Println("Disconnected from MongoDB")
	return nil
}
