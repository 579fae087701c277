package routes

import (
	"net/http"
	"strings"
	"time"

	"memories/auth"
	"memories/handlers"
	"memories/middleware"
	"memories/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Posts   *handlers.PostHandler
	Auth    *handlers.AuthHandler
	Push    *handlers.PushHandler
	Tokens  *auth.TokenManager
	Hub     *websocket.Manager
	Limiter *middleware.IPRateLimiter

	CORSOrigins  []string
	MaxBodyBytes int64
}

func SetupRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     d.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.BodyLimit(d.MaxBodyBytes))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "Memories API running",
			"service": "healthy",
			"clients": d.Hub.GetConnectedUsers(),
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	authRequired := middleware.JWTAuth(d.Tokens)
	limited := middleware.RateLimit(d.Limiter)

	// Posts
	posts := router.Group("/posts")
	posts.GET("/search", d.Posts.GetPostsBySearch)
	posts.GET("", d.Posts.GetPosts)
	posts.GET("/:id", d.Posts.GetPost)

	protected := posts.Group("", limited, authRequired)
	protected.POST("", d.Posts.CreatePost)
	protected.PATCH("/:id", d.Posts.UpdatePost)
	protected.DELETE("/:id", d.Posts.DeletePost)
	protected.PATCH("/:id/like", d.Posts.LikePost)
	protected.PATCH("/:id/likePost", d.Posts.LikePost)
	protected.PATCH("/:id/comment", d.Posts.CommentPost)
	protected.PATCH("/:id/commentPost", d.Posts.CommentPost)

	// Users
	user := router.Group("/user", limited)
	user.POST("/signup", d.Auth.Signup)
	user.POST("/signin", d.Auth.Signin)
	user.POST("/google", d.Auth.GoogleSignin)
	user.GET("/google/url", d.Auth.GoogleAuthURL)
	user.GET("/google/callback", d.Auth.GoogleCallback)

	// Push subscriptions
	router.GET("/push/vapid-public-key", d.Push.GetVapidPublicKey)
	router.POST("/push/subscribe", limited, authRequired, d.Push.SubscribePush)

	// Live feed
	router.GET("/ws", gin.WrapF(websocket.Handler(d.Hub, d.Tokens)))

	router.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		message := "Check the API documentation for available endpoints"
		if strings.HasPrefix(path, "/posts") {
			message = "Unknown posts endpoint"
		}
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Endpoint not found",
			"path":    path,
			"message": message,
		})
	})

	return router
}
