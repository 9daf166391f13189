package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"friendZoneAPI/internal/reconcile"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	ClerkSecretKey     string
	ClerkWebhookSecret string

	// Firebase credentials: base64 JSON takes precedence over the file.
	FirebaseCredentialsJSON string
	FirebaseCredentialsFile string
	FirestoreMirrorEnabled  bool

	Presence            reconcile.Policy
	PresenceSweepPeriod time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	MetricsUser string
	MetricsPass string

	DispatchWorkers   int
	DispatchQueueSize int
	ViewCacheTTL      time.Duration
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	return Config{
		Port:        getenv("PORT", "3333"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getenv("REDIS_URL", "redis://localhost:6379/0"),

		ClerkSecretKey:     os.Getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret: os.Getenv("CLERK_WEBHOOK_SECRET"),

		FirebaseCredentialsJSON: os.Getenv("FCM_SERVICE_ACCOUNT_JSON"),
		FirebaseCredentialsFile: getenv("FIREBASE_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		FirestoreMirrorEnabled:  getenvBool("FIRESTORE_MIRROR_ENABLED", false),

		Presence: reconcile.Policy{
			Fresh:    time.Duration(getenvInt("PRESENCE_FRESH_MINUTES", 30)) * time.Minute,
			Unusable: time.Duration(getenvInt("PRESENCE_UNUSABLE_HOURS", 12)) * time.Hour,
		},
		PresenceSweepPeriod: time.Duration(getenvInt("PRESENCE_SWEEP_SECONDS", 60)) * time.Second,

		RateLimitRPS:   getenvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getenvInt("RATE_LIMIT_BURST", 30),

		MetricsUser: os.Getenv("METRICS_USER"),
		MetricsPass: os.Getenv("METRICS_PASS"),

		DispatchWorkers:   getenvInt("DISPATCH_WORKERS", 5),
		DispatchQueueSize: getenvInt("DISPATCH_QUEUE_SIZE", 100),
		ViewCacheTTL:      time.Duration(getenvInt("VIEW_CACHE_TTL_SECONDS", 300)) * time.Second,
	}
}

// Validate reports the first setting the server cannot start without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if c.ClerkSecretKey == "" {
		return fmt.Errorf("CLERK_SECRET_KEY environment variable is not set")
	}
	if err := c.Presence.Validate(); err != nil {
		return fmt.Errorf("invalid presence thresholds: %w", err)
	}
	if c.PresenceSweepPeriod <= 0 {
		return fmt.Errorf("PRESENCE_SWEEP_SECONDS must be positive")
	}
	if c.DispatchWorkers < 1 {
		return fmt.Errorf("DISPATCH_WORKERS must be at least 1")
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Config: invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Config: invalid %s=%q, using %v", key, value, fallback)
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
