package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memories/auth"
	"memories/cache"
	"memories/config"
	"memories/database"
	"memories/events"
	"memories/handlers"
	"memories/media"
	"memories/middleware"
	"memories/push"
	"memories/routes"
	"memories/services"
	"memories/websocket"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/idtoken"
)

func main() {
	log.Println("🚀 Starting Memories API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ Invalid configuration: ", err)
	}

	// ===== GIN MODE =====
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
		log.Println("⚙️ Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("⚙️ Running in DEBUG mode")
	}

	// ===== CONNECT TO MONGODB WITH RETRY =====
	log.Println("🔌 Connecting to MongoDB...")
	db, err := database.ConnectWithRetry(cfg.MongoURI, cfg.MongoDatabase, 3, 2*time.Second)
	if err != nil {
		log.Fatal("❌ Failed to connect to MongoDB: ", err)
	}
	log.Println("✅ MongoDB connected successfully")

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := db.EnsureIndexes(indexCtx); err != nil {
		log.Printf("⚠️ Failed to create indexes: %v", err)
	}
	indexCancel()

	// ===== MEDIA =====
	var mediaStore services.MediaStore = media.Unconfigured{}
	if cfg.CloudinaryConfigured() {
		client, err := media.NewClient(
			media.Credentials{
				URL:       cfg.CloudinaryURL,
				CloudName: cfg.CloudinaryName,
				APIKey:    cfg.CloudinaryAPIKey,
				APISecret: cfg.CloudinaryAPISecret,
			},
			media.Profile{UploadPreset: cfg.UploadPreset, Folder: cfg.UploadFolder},
		)
		if err != nil {
			log.Fatal("❌ ", err)
		}
		mediaStore = client
		log.Println("✅ Cloudinary configured")
	} else {
		log.Println("⚠️ Cloudinary not configured - posts with images will be rejected")
	}

	// ===== POST CACHE =====
	var postRepo services.PostRepository = database.NewPostRepository(db.Posts)
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.NewRedisClient(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCancel()
		if err != nil {
			log.Fatal("❌ Failed to connect to Redis: ", err)
		}
		postRepo = cache.NewRepository(postRepo, cache.NewRedisStore(redisClient, cfg.CacheTTL))
	} else {
		postRepo = cache.NewRepository(postRepo, cache.NewLRUStore(cfg.CacheSize, cfg.CacheTTL))
		log.Printf("✅ Using in-process post cache (%d entries)", cfg.CacheSize)
		log.Println("⚠️ In-process cache is per instance; set REDIS_ADDR when running more than one")
	}

	// ===== EVENTS =====
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := websocket.NewManager()
	go hub.Start(hubCtx)

	publishers := events.Fanout{hub}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatal("❌ Failed to connect to NATS: ", err)
		}
		publishers = append(publishers, events.NewNATSPublisher(natsConn, ""))
		log.Println("✅ Publishing post events to NATS")
	}

	subscriptions := database.NewSubscriptionRepository(db.PushSubscriptions)
	var notifier *push.Notifier
	if cfg.PushConfigured() {
		notifier = push.NewNotifier(subscriptions, push.Config{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subject:         cfg.VAPIDSubject,
		})
		publishers = append(publishers, notifier)
	} else {
		log.Println("⚠️ VAPID keys not set - push notifications disabled (run cmd/vapidkeys)")
	}

	postService := services.NewPostService(postRepo, mediaStore,
		services.WithPublisher(publishers),
		services.WithCleanupTimeout(cfg.MediaCleanupTimeout),
	)

	// ===== HANDLERS =====
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authHandler := handlers.NewAuthHandler(database.NewUserRepository(db.Users), tokens)
	if cfg.GoogleConfigured() {
		validator, err := idtoken.NewValidator(context.Background())
		if err != nil {
			log.Fatal("❌ Failed to create Google token validator: ", err)
		}
		authHandler.WithGoogle(
			handlers.NewGoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
			validator,
		)
		log.Println("✅ Google OAuth configured successfully")
	}

	router := routes.SetupRouter(routes.Deps{
		Posts:        handlers.NewPostHandler(postService),
		Auth:         authHandler,
		Push:         handlers.NewPushHandler(subscriptions, cfg.VAPIDPublicKey),
		Tokens:       tokens,
		Hub:          hub,
		Limiter:      middleware.NewIPRateLimiter(cfg.RateLimitPerMinute),
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	// ===== SERVER CONFIG =====
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Server error: ", err)
		}
	}()

	// ===== GRACEFUL SHUTDOWN =====
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("❌ Forced shutdown:", err)
	}

	postService.Wait()
	if notifier != nil {
		notifier.Wait()
	}

	stopHub()
	<-hub.Done()

	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			log.Printf("⚠️ NATS drain failed: %v", err)
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := db.Disconnect(); err != nil {
		log.Printf("⚠️ MongoDB disconnect failed: %v", err)
	}

	log.Println("👋 Server stopped gracefully")
}
