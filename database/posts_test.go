package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"memories/models"
	"memories/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildFilter(t *testing.T) {
	assert.Equal(t, bson.M{}, buildFilter(services.PostQuery{Skip: 8, Limit: 8}))

	f := buildFilter(services.PostQuery{Search: "a.b(c", Tags: []string{"x", "y"}})
	or, ok := f["$or"].([]bson.M)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, primitive.Regex{Pattern: `a\.b\(c`, Options: "i"}, or[0]["title"])
	assert.Equal(t, bson.M{"$in": []string{"x", "y"}}, or[1]["tags"])

	tagsOnly := buildFilter(services.PostQuery{Tags: []string{"x"}})
	assert.Len(t, tagsOnly["$or"], 1)
}

func TestToggleSteps(t *testing.T) {
	id := primitive.NewObjectID()
	steps := toggleSteps(id, "u1")
	require.Len(t, steps, 2)

	assert.Equal(t, bson.M{"_id": id, "likes": "u1"}, steps[0].filter)
	assert.Equal(t, bson.M{"$pull": bson.M{"likes": "u1"}}, steps[0].update)
	assert.False(t, steps[0].liked)

	assert.Equal(t, bson.M{"_id": id, "likes": bson.M{"$ne": "u1"}}, steps[1].filter)
	assert.Equal(t, bson.M{"$push": bson.M{"likes": "u1"}}, steps[1].update)
	assert.True(t, steps[1].liked)
}

// likesDocument applies toggle updates to one post atomically, the way the
// server applies a single-document update.
type likesDocument struct {
	mu    sync.Mutex
	id    primitive.ObjectID
	likes []string
	calls int
}

func (d *likesDocument) has(userID string) bool {
	for _, l := range d.likes {
		if l == userID {
			return true
		}
	}
	return false
}

func (d *likesDocument) apply(_ context.Context, filter, update bson.M) (*models.Post, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++

	if filter["_id"] != d.id {
		return nil, services.ErrPostNotFound
	}
	switch cond := filter["likes"].(type) {
	case string:
		if !d.has(cond) {
			return nil, services.ErrPostNotFound
		}
	case bson.M:
		if d.has(cond["$ne"].(string)) {
			return nil, services.ErrPostNotFound
		}
	}

	if pull, ok := update["$pull"].(bson.M); ok {
		userID := pull["likes"].(string)
		kept := d.likes[:0]
		for _, l := range d.likes {
			if l != userID {
				kept = append(kept, l)
			}
		}
		d.likes = kept
	}
	if push, ok := update["$push"].(bson.M); ok {
		d.likes = append(d.likes, push["likes"].(string))
	}

	post := models.Post{ID: d.id, Likes: append([]string{}, d.likes...)}
	return &post, nil
}

func (d *likesDocument) exists(context.Context) error { return nil }

func TestToggleLike_ConcurrentUsersAreNotLost(t *testing.T) {
	doc := &likesDocument{id: primitive.NewObjectID()}
	ctx := context.Background()

	const users = 50
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, liked, err := toggleLike(ctx, doc.id, fmt.Sprintf("user-%d", i), doc.apply, doc.exists)
			assert.NoError(t, err)
			assert.True(t, liked)
		}(i)
	}
	wg.Wait()

	assert.Len(t, doc.likes, users)
}

func TestToggleLike_TwiceRestores(t *testing.T) {
	doc := &likesDocument{id: primitive.NewObjectID(), likes: []string{"other"}}
	ctx := context.Background()

	post, liked, err := toggleLike(ctx, doc.id, "u1", doc.apply, doc.exists)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, []string{"other", "u1"}, post.Likes)

	post, liked, err = toggleLike(ctx, doc.id, "u1", doc.apply, doc.exists)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, []string{"other"}, post.Likes)
}

func TestToggleLike_MissingPost(t *testing.T) {
	doc := &likesDocument{id: primitive.NewObjectID()}
	gone := func(context.Context) error { return services.ErrPostNotFound }

	_, _, err := toggleLike(context.Background(), primitive.NewObjectID(), "u1", doc.apply, gone)
	assert.ErrorIs(t, err, services.ErrPostNotFound)
	assert.Equal(t, 2, doc.calls)
}

func TestToggleLike_RetriesWhenStateFlips(t *testing.T) {
	id := primitive.NewObjectID()
	calls := 0
	// The first round loses both races; the second pull matches.
	apply := func(_ context.Context, filter, update bson.M) (*models.Post, error) {
		calls++
		if calls == 3 {
			return &models.Post{ID: id}, nil
		}
		return nil, services.ErrPostNotFound
	}
	exists := func(context.Context) error { return nil }

	_, liked, err := toggleLike(context.Background(), id, "u1", apply, exists)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 3, calls)
}

func TestToggleLike_GivesUpUnderContention(t *testing.T) {
	id := primitive.NewObjectID()
	calls := 0
	apply := func(context.Context, bson.M, bson.M) (*models.Post, error) {
		calls++
		return nil, services.ErrPostNotFound
	}
	exists := func(context.Context) error { return nil }

	_, _, err := toggleLike(context.Background(), id, "u1", apply, exists)
	require.Error(t, err)
	assert.False(t, services.IsNotFound(err))
	assert.Equal(t, 2*toggleAttempts, calls)
}

func TestToggleLike_StorageError(t *testing.T) {
	boom := errors.New("connection reset")
	apply := func(context.Context, bson.M, bson.M) (*models.Post, error) { return nil, boom }

	_, _, err := toggleLike(context.Background(), primitive.NewObjectID(), "u1", apply, nil)
	assert.ErrorIs(t, err, boom)
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set, skipping MongoDB test")
	}

	db, err := ConnectMongo(uri, fmt.Sprintf("memories_test_%d", time.Now().UnixNano()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Posts.Database().Drop(context.Background())
		_ = db.Disconnect()
	})
	require.NoError(t, db.EnsureIndexes(context.Background()))
	return db
}

func TestPostRepository_Live(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db.Posts)
	ctx := context.Background()

	var ids []primitive.ObjectID
	for i := 0; i < 10; i++ {
		p, err := repo.Insert(ctx, &models.Post{Title: fmt.Sprintf("post %d", i), Tags: []string{"t"}, Creator: "c"})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	total, err := repo.Count(ctx, services.PostQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)

	page, err := repo.Find(ctx, services.PostQuery{Skip: 8, Limit: 8})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[0], page[1].ID)

	found, err := repo.Find(ctx, services.PostQuery{Search: "POST 3"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ids[3], found[0].ID)

	updated, err := repo.UpdateByID(ctx, ids[0], services.PostFields{Title: "renamed", Tags: []string{"new"}})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "c", updated.Creator)

	commented, err := repo.AppendComment(ctx, ids[0], "first")
	require.NoError(t, err)
	commented, err = repo.AppendComment(ctx, ids[0], "second")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, commented.Comments)

	require.NoError(t, repo.DeleteByID(ctx, ids[0]))
	assert.ErrorIs(t, repo.DeleteByID(ctx, ids[0]), services.ErrPostNotFound)
	_, err = repo.FindByID(ctx, ids[0])
	assert.ErrorIs(t, err, services.ErrPostNotFound)
}

func TestPostRepository_ToggleLikeLive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db.Posts)
	ctx := context.Background()

	p, err := repo.Insert(ctx, &models.Post{Title: "liked"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := repo.ToggleLike(ctx, p.ID, fmt.Sprintf("user-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Likes, 20)

	after, liked, err := repo.ToggleLike(ctx, p.ID, "user-0")
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Len(t, after.Likes, 19)

	_, _, err = repo.ToggleLike(ctx, primitive.NewObjectID(), "user-0")
	assert.ErrorIs(t, err, services.ErrPostNotFound)
}

func TestUserRepository_Live(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db.Users)
	ctx := context.Background()

	hash := "hash"
	_, err := repo.Insert(ctx, &models.User{Name: "Ann Lee", Email: "Ann@Example.com", PasswordHash: &hash, AuthProvider: "email"})
	require.NoError(t, err)

	_, err = repo.Insert(ctx, &models.User{Email: "ann@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	u, err := repo.FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", u.Name)

	linked, err := repo.UpsertGoogle(ctx, "g-1", "ann@example.com", "Other", "")
	require.NoError(t, err)
	assert.Equal(t, u.ID, linked.ID)
	assert.Equal(t, "Ann Lee", linked.Name)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
