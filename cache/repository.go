package cache

import (
	"context"
	"log"

	"memories/models"
	"memories/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Repository is a read-through cache in front of a post repository. Reads by
// id are served from the store when possible; every write refreshes or evicts
// the cached copy, and a delete tombstones it so an in-flight read cannot
// restore it. Store failures are logged and fall back to the backing
// repository.
type Repository struct {
	services.PostRepository
	store Store
}

func NewRepository(next services.PostRepository, store Store) *Repository {
	return &Repository{PostRepository: next, store: store}
}

func (r *Repository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	key := id.Hex()

	post, ok, err := r.store.Get(ctx, key)
	if err != nil {
		log.Printf("[PostCache] get %s: %v", key, err)
	}
	if ok {
		return post, nil
	}

	post, err = r.PostRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.store.Fill(ctx, post); err != nil {
		log.Printf("[PostCache] fill %s: %v", key, err)
	}
	return post, nil
}

func (r *Repository) Insert(ctx context.Context, post *models.Post) (*models.Post, error) {
	created, err := r.PostRepository.Insert(ctx, post)
	if err != nil {
		return nil, err
	}
	r.set(ctx, created)
	return created, nil
}

func (r *Repository) UpdateByID(ctx context.Context, id primitive.ObjectID, fields services.PostFields) (*models.Post, error) {
	updated, err := r.PostRepository.UpdateByID(ctx, id, fields)
	if err != nil {
		r.evict(ctx, id)
		return nil, err
	}
	r.set(ctx, updated)
	return updated, nil
}

func (r *Repository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	err := r.PostRepository.DeleteByID(ctx, id)
	r.evict(ctx, id)
	return err
}

func (r *Repository) ToggleLike(ctx context.Context, id primitive.ObjectID, userID string) (*models.Post, bool, error) {
	post, liked, err := r.PostRepository.ToggleLike(ctx, id, userID)
	if err != nil {
		r.evict(ctx, id)
		return nil, false, err
	}
	r.set(ctx, post)
	return post, liked, nil
}

func (r *Repository) AppendComment(ctx context.Context, id primitive.ObjectID, text string) (*models.Post, error) {
	post, err := r.PostRepository.AppendComment(ctx, id, text)
	if err != nil {
		r.evict(ctx, id)
		return nil, err
	}
	r.set(ctx, post)
	return post, nil
}

func (r *Repository) set(ctx context.Context, post *models.Post) {
	if err := r.store.Set(ctx, post); err != nil {
		log.Printf("[PostCache] set %s: %v", post.ID.Hex(), err)
	}
}

func (r *Repository) evict(ctx context.Context, id primitive.ObjectID) {
	if err := r.store.Delete(ctx, id.Hex()); err != nil {
		log.Printf("[PostCache] delete %s: %v", id.Hex(), err)
	}
}
