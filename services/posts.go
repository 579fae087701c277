package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"memories/events"
	"memories/media"
	"memories/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PageSize is the number of posts on one page of the listing.
const PageSize = 8

const createdAtLayout = "2006-01-02T15:04:05.000Z"

type CreatePostInput struct {
	Title        string
	Message      string
	Name         string
	Tags         []string
	SelectedFile string // inline media data, not a hosted URL
}

type UpdatePostInput struct {
	Title        string
	Message      string
	Tags         []string
	SelectedFile string // empty keeps the current media
}

// Page is one window of the listing, newest first.
type Page struct {
	Data          []models.Post `json:"data"`
	CurrentPage   int           `json:"currentPage"`
	NumberOfPages int64         `json:"numberOfPages"`
}

// PostService sequences document mutations with media store side effects.
// Removing media that is no longer referenced happens in the background and
// never fails the request that caused it.
type PostService struct {
	repo      PostRepository
	media     MediaStore
	publisher events.Publisher

	cleanupTimeout time.Duration
	now            func() time.Time
	cleanups       sync.WaitGroup
}

type Option func(*PostService)

func WithPublisher(p events.Publisher) Option {
	return func(s *PostService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithCleanupTimeout(d time.Duration) Option {
	return func(s *PostService) {
		if d > 0 {
			s.cleanupTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *PostService) { s.now = now }
}

func NewPostService(repo PostRepository, mediaStore MediaStore, opts ...Option) *PostService {
	s := &PostService{
		repo:           repo,
		media:          mediaStore,
		publisher:      events.Discard,
		cleanupTimeout: 30 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until all background media removals have finished.
func (s *PostService) Wait() {
	s.cleanups.Wait()
}

func (s *PostService) Create(ctx context.Context, in CreatePostInput, callerID string) (*models.Post, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	post := &models.Post{
		Title:     in.Title,
		Message:   in.Message,
		Name:      in.Name,
		Tags:      in.Tags,
		Creator:   callerID,
		Likes:     []string{},
		Comments:  []string{},
		CreatedAt: s.now().UTC().Format(createdAtLayout),
	}
	post.Normalize()

	var uploaded *media.Asset
	if in.SelectedFile != "" {
		asset, err := s.media.Upload(ctx, in.SelectedFile)
		if err != nil {
			return nil, &UpstreamError{Op: "upload", Err: err}
		}
		uploaded = asset
		post.SelectedFile = asset.URL
	}

	created, err := s.repo.Insert(ctx, post)
	if err != nil {
		if uploaded != nil {
			s.destroyInBackground(publicID(uploaded))
		}
		return nil, fmt.Errorf("insert post: %w", err)
	}

	s.publisher.Publish(events.New(events.PostCreated, created.ID.Hex(), callerID, created))
	return created, nil
}

func (s *PostService) GetByID(ctx context.Context, id string) (*models.Post, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, oid)
}

// ListPage returns page (1-based) of all posts, newest first.
func (s *PostService) ListPage(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		return nil, NewValidationError("page", "must be a positive integer")
	}

	total, err := s.repo.Count(ctx, PostQuery{})
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	numberOfPages := (total + PageSize - 1) / PageSize

	result := &Page{
		Data:          []models.Post{},
		CurrentPage:   page,
		NumberOfPages: numberOfPages,
	}
	// Compared in pages so the skip is only computed when it is in range.
	if int64(page-1) >= numberOfPages {
		return result, nil
	}

	posts, err := s.repo.Find(ctx, PostQuery{Skip: int64(page-1) * PageSize, Limit: PageSize})
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	result.Data = normalized(posts)
	return result, nil
}

// Search matches posts whose title contains searchQuery (ignoring case) or
// that carry any of tags. With neither a query nor tags nothing matches.
func (s *PostService) Search(ctx context.Context, searchQuery string, tags []string) ([]models.Post, error) {
	q := PostQuery{Search: strings.TrimSpace(searchQuery), Tags: tags}
	if q.Empty() {
		return []models.Post{}, nil
	}

	posts, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return normalized(posts), nil
}

// Update overwrites title, message and tags. A new SelectedFile is uploaded
// before anything else changes; the previous media is removed only after the
// post references the new one.
func (s *PostService) Update(ctx context.Context, id string, in UpdatePostInput) (*models.Post, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}

	fields := PostFields{
		Title:        in.Title,
		Message:      in.Message,
		Tags:         in.Tags,
		SelectedFile: existing.SelectedFile,
	}
	if fields.Tags == nil {
		fields.Tags = []string{}
	}

	var uploaded *media.Asset
	if in.SelectedFile != "" && in.SelectedFile != existing.SelectedFile {
		asset, err := s.media.Upload(ctx, in.SelectedFile)
		if err != nil {
			return nil, &UpstreamError{Op: "upload", Err: err}
		}
		uploaded = asset
		fields.SelectedFile = asset.URL
	}

	updated, err := s.repo.UpdateByID(ctx, oid, fields)
	if err != nil {
		if uploaded != nil {
			s.destroyInBackground(publicID(uploaded))
		}
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update post: %w", err)
	}

	if uploaded != nil && existing.SelectedFile != "" {
		s.destroyInBackground(media.PublicIDFromURL(existing.SelectedFile))
	}

	s.publisher.Publish(events.New(events.PostUpdated, id, "", updated))
	return updated, nil
}

// Delete removes the post and then, in the background, its hosted media.
// Deleting an absent post fails with ErrPostNotFound.
func (s *PostService) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	existing, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteByID(ctx, oid); err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("delete post: %w", err)
	}

	if existing.SelectedFile != "" {
		s.destroyInBackground(media.PublicIDFromURL(existing.SelectedFile))
	}

	s.publisher.Publish(events.New(events.PostDeleted, id, "", nil))
	return nil
}

// ToggleLike likes the post for callerID, or removes the like if it is
// already there.
func (s *PostService) ToggleLike(ctx context.Context, id, callerID string) (*models.Post, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	post, liked, err := s.repo.ToggleLike(ctx, oid, callerID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("toggle like: %w", err)
	}

	eventType := events.PostUnliked
	if liked {
		eventType = events.PostLiked
	}
	s.publisher.Publish(events.New(eventType, id, callerID, post))
	return post, nil
}

// AddComment appends text to the post's comments. callerID is only used to
// attribute the event.
func (s *PostService) AddComment(ctx context.Context, id, text, callerID string) (*models.Post, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewValidationError("value", "comment cannot be empty")
	}

	post, err := s.repo.AppendComment(ctx, oid, text)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("add comment: %w", err)
	}

	ev := events.New(events.PostCommented, id, callerID, post)
	ev.Comment = text
	s.publisher.Publish(ev)
	return post, nil
}

func (s *PostService) destroyInBackground(publicID string) {
	if publicID == "" {
		return
	}

	s.cleanups.Add(1)
	go func() {
		defer s.cleanups.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if err := s.media.Destroy(ctx, publicID); err != nil {
			log.Printf("[MediaCleanup] failed to destroy %s: %v", publicID, err)
		}
	}()
}

// ParsePage validates the raw page query value.
func ParsePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, NewValidationError("page", "is required")
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, NewValidationError("page", "must be a positive integer")
	}
	return page, nil
}

// ParseTags splits a comma separated tag list, dropping blanks.
func ParseTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

func publicID(a *media.Asset) string {
	if a.PublicID != "" {
		return a.PublicID
	}
	return media.PublicIDFromURL(a.URL)
}

func normalized(posts []models.Post) []models.Post {
	if posts == nil {
		return []models.Post{}
	}
	for i := range posts {
		posts[i].Normalize()
	}
	return posts
}
