package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"memories/auth"
	"memories/handlers"
	"memories/middleware"
	"memories/models"
	"memories/services"
	"memories/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// emptyRepository is a post store with no posts.
type emptyRepository struct{}

func (emptyRepository) FindByID(context.Context, primitive.ObjectID) (*models.Post, error) {
	return nil, services.ErrPostNotFound
}

func (emptyRepository) Find(context.Context, services.PostQuery) ([]models.Post, error) {
	return nil, nil
}

func (emptyRepository) Count(context.Context, services.PostQuery) (int64, error) { return 0, nil }

func (emptyRepository) Insert(_ context.Context, p *models.Post) (*models.Post, error) {
	out := p.Clone()
	out.ID = primitive.NewObjectID()
	return &out, nil
}

func (emptyRepository) UpdateByID(context.Context, primitive.ObjectID, services.PostFields) (*models.Post, error) {
	return nil, services.ErrPostNotFound
}

func (emptyRepository) DeleteByID(context.Context, primitive.ObjectID) error {
	return services.ErrPostNotFound
}

func (emptyRepository) ToggleLike(context.Context, primitive.ObjectID, string) (*models.Post, bool, error) {
	return nil, false, services.ErrPostNotFound
}

func (emptyRepository) AppendComment(context.Context, primitive.ObjectID, string) (*models.Post, error) {
	return nil, services.ErrPostNotFound
}

func newTestRouter(t *testing.T, perMinute int) (*gin.Engine, *auth.TokenManager) {
	t.Helper()
	tokens := auth.NewTokenManager("secret", time.Hour)
	svc := services.NewPostService(emptyRepository{}, nil)

	r := SetupRouter(Deps{
		Posts:        handlers.NewPostHandler(svc),
		Auth:         handlers.NewAuthHandler(nil, tokens),
		Push:         handlers.NewPushHandler(nil, ""),
		Tokens:       tokens,
		Hub:          websocket.NewManager(),
		Limiter:      middleware.NewIPRateLimiter(perMinute),
		CORSOrigins:  []string{"http://localhost:3000"},
		MaxBodyBytes: 1 << 20,
	})
	return r, tokens
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Operational(t *testing.T) {
	r, _ := newTestRouter(t, 60)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Endpoint not found")
}

func TestRouter_PublicPostRoutes(t *testing.T) {
	r, _ := newTestRouter(t, 60)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/posts?page=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"currentPage":1,"numberOfPages":0}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/posts/search?searchQuery=x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/posts/"+primitive.NewObjectID().Hex(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_MutationsRequireToken(t *testing.T) {
	r, tokens := newTestRouter(t, 60)
	id := primitive.NewObjectID().Hex()

	cases := []struct{ method, path string }{
		{http.MethodPost, "/posts"},
		{http.MethodPatch, "/posts/" + id},
		{http.MethodDelete, "/posts/" + id},
		{http.MethodPatch, "/posts/" + id + "/like"},
		{http.MethodPatch, "/posts/" + id + "/likePost"},
		{http.MethodPatch, "/posts/" + id + "/comment"},
		{http.MethodPatch, "/posts/" + id + "/commentPost"},
		{http.MethodPost, "/push/subscribe"},
	}
	for _, tc := range cases {
		w := serve(r, httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}

	token, err := tokens.Issue("u1", "", "Ann")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(`{"title":"hello"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"creator":"u1"`)
	assert.Contains(t, w.Body.String(), `"name":"Ann"`)

	req = httptest.NewRequest(http.MethodPatch, "/posts/"+id+"/likePost", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(r, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t, 60)

	req := httptest.NewRequest(http.MethodOptions, "/posts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := serve(r, req)

	assert.Less(t, w.Code, 300)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimitsAuthRoutes(t *testing.T) {
	r, _ := newTestRouter(t, 2)

	var last int
	for i := 0; i < 3; i++ {
		last = serve(r, httptest.NewRequest(http.MethodPost, "/user/signin", strings.NewReader(`{}`))).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
