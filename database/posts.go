package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"memories/models"
	"memories/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// toggleAttempts bounds how often ToggleLike retries when a concurrent toggle
// by the same user flips the state between its two conditional updates.
const toggleAttempts = 3

type PostRepository struct {
	coll *mongo.Collection
}

func NewPostRepository(coll *mongo.Collection) *PostRepository {
	return &PostRepository{coll: coll}
}

var _ services.PostRepository = (*PostRepository)(nil)

func buildFilter(q services.PostQuery) bson.M {
	var or []bson.M
	if q.Search != "" {
		or = append(or, bson.M{"title": primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}})
	}
	if len(q.Tags) > 0 {
		or = append(or, bson.M{"tags": bson.M{"$in": q.Tags}})
	}
	if len(or) == 0 {
		return bson.M{}
	}
	return bson.M{"$or": or}
}

func (r *PostRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		return nil, notFound(err)
	}
	post.Normalize()
	return &post, nil
}

func (r *PostRepository) Find(ctx context.Context, q services.PostQuery) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := r.coll.Find(ctx, buildFilter(q), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) Count(ctx context.Context, q services.PostQuery) (int64, error) {
	if q.Empty() {
		return r.coll.EstimatedDocumentCount(ctx)
	}
	return r.coll.CountDocuments(ctx, buildFilter(q))
}

func (r *PostRepository) Insert(ctx context.Context, post *models.Post) (*models.Post, error) {
	stored := post.Clone()
	stored.ID = primitive.NewObjectID()
	stored.Normalize()

	if _, err := r.coll.InsertOne(ctx, stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *PostRepository) UpdateByID(ctx context.Context, id primitive.ObjectID, fields services.PostFields) (*models.Post, error) {
	tags := fields.Tags
	if tags == nil {
		tags = []string{}
	}
	update := bson.M{"$set": bson.M{
		"title":        fields.Title,
		"message":      fields.Message,
		"tags":         tags,
		"selectedFile": fields.SelectedFile,
	}}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

func (r *PostRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return services.ErrPostNotFound
	}
	return nil
}

// ToggleLike pulls userID when it is present, otherwise pushes it. Each
// branch is a single conditional update so concurrent likes from different
// users never overwrite each other.
func (r *PostRepository) ToggleLike(ctx context.Context, id primitive.ObjectID, userID string) (*models.Post, bool, error) {
	exists := func(ctx context.Context) error {
		_, err := r.FindByID(ctx, id)
		return err
	}
	return toggleLike(ctx, id, userID, r.findOneAndUpdate, exists)
}

type toggleStep struct {
	filter bson.M
	update bson.M
	liked  bool
}

// toggleSteps lists the unlike branch first; at most one of the two filters
// matches a given document state.
func toggleSteps(id primitive.ObjectID, userID string) []toggleStep {
	return []toggleStep{
		{
			filter: bson.M{"_id": id, "likes": userID},
			update: bson.M{"$pull": bson.M{"likes": userID}},
			liked:  false,
		},
		{
			filter: bson.M{"_id": id, "likes": bson.M{"$ne": userID}},
			update: bson.M{"$push": bson.M{"likes": userID}},
			liked:  true,
		},
	}
}

type conditionalUpdate func(ctx context.Context, filter, update bson.M) (*models.Post, error)

func toggleLike(ctx context.Context, id primitive.ObjectID, userID string, apply conditionalUpdate, exists func(context.Context) error) (*models.Post, bool, error) {
	for i := 0; i < toggleAttempts; i++ {
		for _, step := range toggleSteps(id, userID) {
			post, err := apply(ctx, step.filter, step.update)
			if err == nil {
				return post, step.liked, nil
			}
			if !services.IsNotFound(err) {
				return nil, false, err
			}
		}

		// Neither branch matched: the post is gone or the state flipped.
		if err := exists(ctx); err != nil {
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("toggle like on %s: too much contention", id.Hex())
}

func (r *PostRepository) AppendComment(ctx context.Context, id primitive.ObjectID, text string) (*models.Post, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"comments": text}})
}

func (r *PostRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var post models.Post
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&post); err != nil {
		return nil, notFound(err)
	}
	post.Normalize()
	return &post, nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return services.ErrPostNotFound
	}
	return err
}
