package services

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"memories/media"
	"memories/models"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryRepository mirrors the Mongo repository semantics in memory.
type memoryRepository struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]models.Post

	insertErr error
	updateErr error
	deleteErr error
	findErr   error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{posts: make(map[primitive.ObjectID]models.Post)}
}

func (r *memoryRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	out := p.Clone()
	return &out, nil
}

func (r *memoryRepository) matching(q PostQuery) []models.Post {
	var out []models.Post
	for _, p := range r.posts {
		if q.Empty() || matches(p, q) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})
	return out
}

func matches(p models.Post, q PostQuery) bool {
	if q.Search != "" && strings.Contains(strings.ToLower(p.Title), strings.ToLower(q.Search)) {
		return true
	}
	for _, want := range q.Tags {
		for _, tag := range p.Tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

func (r *memoryRepository) Find(_ context.Context, q PostQuery) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findErr != nil {
		return nil, r.findErr
	}

	all := r.matching(q)
	if q.Skip >= int64(len(all)) {
		return nil, nil
	}
	all = all[q.Skip:]
	if q.Limit > 0 && q.Limit < int64(len(all)) {
		all = all[:q.Limit]
	}
	return all, nil
}

func (r *memoryRepository) Count(_ context.Context, q PostQuery) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(q))), nil
}

func (r *memoryRepository) Insert(_ context.Context, post *models.Post) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.insertErr != nil {
		return nil, r.insertErr
	}
	stored := post.Clone()
	stored.ID = primitive.NewObjectID()
	r.posts[stored.ID] = stored

	out := stored.Clone()
	return &out, nil
}

func (r *memoryRepository) UpdateByID(_ context.Context, id primitive.ObjectID, fields PostFields) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return nil, r.updateErr
	}
	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	p.Title = fields.Title
	p.Message = fields.Message
	p.Tags = append([]string{}, fields.Tags...)
	p.SelectedFile = fields.SelectedFile
	r.posts[id] = p

	out := p.Clone()
	return &out, nil
}

func (r *memoryRepository) DeleteByID(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *memoryRepository) ToggleLike(_ context.Context, id primitive.ObjectID, userID string) (*models.Post, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, false, ErrPostNotFound
	}

	liked := !p.LikedBy(userID)
	if liked {
		p.Likes = append(p.Likes, userID)
	} else {
		kept := make([]string, 0, len(p.Likes))
		for _, l := range p.Likes {
			if l != userID {
				kept = append(kept, l)
			}
		}
		p.Likes = kept
	}
	r.posts[id] = p

	out := p.Clone()
	return &out, liked, nil
}

func (r *memoryRepository) AppendComment(_ context.Context, id primitive.ObjectID, text string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	p.Comments = append(p.Comments, text)
	r.posts[id] = p

	out := p.Clone()
	return &out, nil
}

type mockMediaStore struct {
	mock.Mock
}

func (m *mockMediaStore) Upload(ctx context.Context, data string) (*media.Asset, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.Asset), args.Error(1)
}

func (m *mockMediaStore) Destroy(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

var errStorage = errors.New("connection reset by peer")
