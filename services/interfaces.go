package services

import (
	"context"

	"memories/media"
	"memories/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostQuery selects posts for Find and Count. A post matches when its title
// contains Search (case-insensitive) or any of its tags is in Tags. An empty
// query matches every post.
type PostQuery struct {
	Search string
	Tags   []string
	Skip   int64
	Limit  int64 // 0 means no limit
}

// Empty reports whether the query has no filter clause.
func (q PostQuery) Empty() bool {
	return q.Search == "" && len(q.Tags) == 0
}

// PostFields are the fields an update may overwrite. Creator and createdAt
// are never written after insert.
type PostFields struct {
	Title        string
	Message      string
	Tags         []string
	SelectedFile string
}

// PostRepository is the document store for posts. Every method returns
// ErrPostNotFound when the id does not exist.
type PostRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)

	// Find returns matching posts sorted by id, newest first.
	Find(ctx context.Context, q PostQuery) ([]models.Post, error)
	Count(ctx context.Context, q PostQuery) (int64, error)

	// Insert assigns a fresh id and returns the stored post.
	Insert(ctx context.Context, post *models.Post) (*models.Post, error)

	// UpdateByID overwrites the mutable fields and returns the new document.
	UpdateByID(ctx context.Context, id primitive.ObjectID, fields PostFields) (*models.Post, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) error

	// ToggleLike atomically adds userID to likes when absent and removes it
	// when present. liked reports the resulting state.
	ToggleLike(ctx context.Context, id primitive.ObjectID, userID string) (post *models.Post, liked bool, err error)

	// AppendComment atomically pushes text onto comments.
	AppendComment(ctx context.Context, id primitive.ObjectID, text string) (*models.Post, error)
}

// MediaStore hosts post images.
type MediaStore interface {
	Upload(ctx context.Context, data string) (*media.Asset, error)
	Destroy(ctx context.Context, publicID string) error
}
