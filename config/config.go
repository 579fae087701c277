package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	MongoURI      string
	MongoDatabase string

	JWTSecret string
	JWTTTL    time.Duration

	CloudinaryURL       string
	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	UploadPreset        string
	UploadFolder        string
	MediaCleanupTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	CacheSize     int

	NATSURL string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	CORSOrigins        []string
	RateLimitPerMinute int
	MaxBodyBytes       int64
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️  Could not read .env: %v", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		Port:    r.str("PORT", "5000"),
		GinMode: r.str("GIN_MODE", "debug"),

		MongoURI:      r.str("MONGODB_URI", ""),
		MongoDatabase: r.str("MONGODB_DATABASE", "memories"),

		JWTSecret: r.str("JWT_SECRET", ""),
		JWTTTL:    r.duration("JWT_TTL", 24*time.Hour),

		CloudinaryURL:       r.str("CLOUDINARY_URL", ""),
		CloudinaryName:      r.str("CLOUDINARY_NAME", ""),
		CloudinaryAPIKey:    r.str("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: r.str("CLOUDINARY_API_SECRET", ""),
		UploadPreset:        r.str("CLOUDINARY_UPLOAD_PRESET", "dev_setups"),
		UploadFolder:        r.str("CLOUDINARY_FOLDER", ""),
		MediaCleanupTimeout: r.duration("MEDIA_CLEANUP_TIMEOUT", 30*time.Second),

		RedisAddr:     r.str("REDIS_ADDR", ""),
		RedisPassword: r.str("REDIS_PASSWORD", ""),
		RedisDB:       r.int("REDIS_DB", 0),
		CacheTTL:      r.duration("CACHE_TTL", 5*time.Minute),
		CacheSize:     r.int("CACHE_SIZE", 512),

		NATSURL: r.str("NATS_URL", ""),

		VAPIDPublicKey:  r.str("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: r.str("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    r.str("VAPID_SUBJECT", "mailto:admin@memories.local"),

		GoogleClientID:     r.str("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: r.str("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  r.str("GOOGLE_REDIRECT_URL", "http://localhost:5000/user/google/callback"),

		CORSOrigins:        r.list("CORS_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitPerMinute: r.int("RATE_LIMIT_PER_MINUTE", 60),
		MaxBodyBytes:       int64(r.int("MAX_BODY_BYTES", 30<<20)),
	}

	if cfg.MongoURI == "" {
		r.errs = append(r.errs, errors.New("MONGODB_URI must be set"))
	}
	if cfg.JWTSecret == "" {
		r.errs = append(r.errs, errors.New("JWT_SECRET must be set"))
	}
	if cfg.RateLimitPerMinute <= 0 {
		r.errs = append(r.errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}

	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	return cfg, nil
}

// CloudinaryConfigured reports whether either credential form is present.
func (c *Config) CloudinaryConfigured() bool {
	return c.CloudinaryURL != "" ||
		(c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != "")
}

func (c *Config) PushConfigured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != ""
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (r *reader) list(key string, def []string) []string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
