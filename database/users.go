package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"memories/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(coll *mongo.Collection) *UserRepository {
	return &UserRepository{coll: coll}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Insert stores a new user. The unique email index turns a concurrent
// duplicate signup into ErrEmailTaken.
func (r *UserRepository) Insert(ctx context.Context, user *models.User) (*models.User, error) {
	stored := *user
	stored.ID = primitive.NewObjectID()
	stored.Email = normalizeEmail(stored.Email)
	now := time.Now().Unix()
	if stored.CreatedAt == 0 {
		stored.CreatedAt = now
	}
	stored.LastSeen = now

	if _, err := r.coll.InsertOne(ctx, stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &stored, nil
}

// UpsertGoogle links a Google identity to the user with the same email,
// creating the user on first sign-in.
func (r *UserRepository) UpsertGoogle(ctx context.Context, googleID, email, name, avatar string) (*models.User, error) {
	now := time.Now().Unix()
	update := bson.M{
		"$set": bson.M{
			"googleId": googleID,
			"lastSeen": now,
		},
		"$setOnInsert": bson.M{
			"name":         name,
			"avatar":       avatar,
			"authProvider": "google",
			"createdAt":    now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user models.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"email": normalizeEmail(email)}, update, opts).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
