package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"memories/middleware"
	"memories/models"
	"memories/services"

	"github.com/gin-gonic/gin"
)

const requestTimeout = 10 * time.Second

type postService interface {
	Create(ctx context.Context, in services.CreatePostInput, callerID string) (*models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListPage(ctx context.Context, page int) (*services.Page, error)
	Search(ctx context.Context, searchQuery string, tags []string) ([]models.Post, error)
	Update(ctx context.Context, id string, in services.UpdatePostInput) (*models.Post, error)
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, id, callerID string) (*models.Post, error)
	AddComment(ctx context.Context, id, text, callerID string) (*models.Post, error)
}

type PostHandler struct {
	posts postService
}

func NewPostHandler(posts postService) *PostHandler {
	return &PostHandler{posts: posts}
}

type PostRequest struct {
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	Name         string   `json:"name"`
	Tags         []string `json:"tags"`
	SelectedFile string   `json:"selectedFile"`
}

type CommentRequest struct {
	Value string `json:"value"`
}

// GetPosts serves GET /posts?page=N.
func (h *PostHandler) GetPosts(c *gin.Context) {
	page, err := services.ParsePage(c.Query("page"))
	if err != nil {
		writeError(c, http.StatusBadRequest, validationMessage(err), err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.posts.ListPage(ctx, page)
	if err != nil {
		logError(c, "GetPosts", err)
		if services.IsValidationError(err) {
			writeError(c, http.StatusBadRequest, validationMessage(err), err)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPostsBySearch serves GET /posts/search?searchQuery=&tags=a,b.
func (h *PostHandler) GetPostsBySearch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	posts, err := h.posts.Search(ctx, c.Query("searchQuery"), services.ParseTags(c.Query("tags")))
	if err != nil {
		logError(c, "GetPostsBySearch", err)
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": posts})
}

func (h *PostHandler) GetPost(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, err := h.posts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if !services.IsNotFound(err) && !errors.Is(err, services.ErrInvalidID) {
			logError(c, "GetPost", err)
		}
		writeError(c, http.StatusNotFound, noPostWithID, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body", "code": codeInvalidInput})
		return
	}

	name := req.Name
	if name == "" {
		name = c.GetString(middleware.UserNameKey)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, err := h.posts.Create(ctx, services.CreatePostInput{
		Title:        req.Title,
		Message:      req.Message,
		Name:         name,
		Tags:         req.Tags,
		SelectedFile: req.SelectedFile,
	}, c.GetString(middleware.UserIDKey))
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated"})
			return
		}
		logError(c, "CreatePost", err)
		writeError(c, http.StatusConflict, err.Error(), err)
		return
	}

	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) UpdatePost(c *gin.Context) {
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body", "code": codeInvalidInput})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, err := h.posts.Update(ctx, c.Param("id"), services.UpdatePostInput{
		Title:        req.Title,
		Message:      req.Message,
		Tags:         req.Tags,
		SelectedFile: req.SelectedFile,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidID) {
			writeMalformedID(c)
			return
		}
		logError(c, "UpdatePost", err)
		writeError(c, http.StatusNotFound, "Failed to update.", err)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) DeletePost(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	err := h.posts.Delete(ctx, c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
	case errors.Is(err, services.ErrInvalidID):
		writeMalformedID(c)
	case services.IsNotFound(err):
		writeError(c, http.StatusNotFound, noPostWithID, err)
	default:
		logError(c, "DeletePost", err)
		writeError(c, http.StatusInternalServerError, "Deletion failed.", err)
	}
}

// LikePost toggles the caller's like. A missing caller gets a 200 with an
// Unauthenticated message.
func (h *PostHandler) LikePost(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, err := h.posts.ToggleLike(ctx, c.Param("id"), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.writeInteractionError(c, "LikePost", err)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) CommentPost(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body", "code": codeInvalidInput})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, err := h.posts.AddComment(ctx, c.Param("id"), req.Value, c.GetString(middleware.UserIDKey))
	if err != nil {
		h.writeInteractionError(c, "CommentPost", err)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) writeInteractionError(c *gin.Context, handler string, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		c.JSON(http.StatusOK, gin.H{"message": "Unauthenticated"})
	case errors.Is(err, services.ErrInvalidID):
		writeMalformedID(c)
	case services.IsNotFound(err):
		writeError(c, http.StatusNotFound, noPostWithID, err)
	case services.IsValidationError(err):
		writeError(c, http.StatusBadRequest, validationMessage(err), err)
	default:
		logError(c, handler, err)
		writeError(c, http.StatusInternalServerError, "Something went wrong", err)
	}
}
