package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string
	LogLevel   string

	// QueueBackend selects the job store: "sqlite" or "postgres".
	QueueBackend string
	// CacheBackend selects the selector cache store: "sqlite" or "redis".
	CacheBackend string

	SQLiteQueuePath string
	SQLiteCachePath string
	SQLiteIndexPath string
	EmbeddingsDir   string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Headless        bool
	PageLoadTimeout time.Duration

	BatchMaxJobs     int
	DiscoverInterval time.Duration
	CleanupDays      int

	BaseURL     string
	ResourceKey string
	ModelKey    string

	// Rate limiter defaults mirror the upstream source's published
	// limits; the model quota table comes from QuotaFile.
	GlobalRequestsPerMinute   float64
	GlobalBurst               float64
	ResourceRequestsPerMinute float64
	ResourceBurst             float64
	QuotaFile                 string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		QueueBackend: getEnv("QUEUE_BACKEND", "sqlite"),
		CacheBackend: getEnv("CACHE_BACKEND", "sqlite"),

		SQLiteQueuePath: getEnv("SQLITE_QUEUE_PATH", "data/queue.db"),
		SQLiteCachePath: getEnv("SQLITE_CACHE_PATH", "data/selector_cache.db"),
		SQLiteIndexPath: getEnv("SQLITE_INDEX_PATH", "data/index.db"),
		EmbeddingsDir:   getEnv("EMBEDDINGS_DIR", "data/embeddings"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "user"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresDB:       getEnv("POSTGRES_DB", "dreamvault"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		Headless:        getEnvAsBool("CHROME_HEADLESS", true),
		PageLoadTimeout: getEnvAsDuration("PAGE_LOAD_TIMEOUT_SECONDS", 60) * time.Second,

		BatchMaxJobs:     getEnvAsInt("BATCH_MAX_JOBS", 0),
		DiscoverInterval: getEnvAsDuration("DISCOVER_INTERVAL_SECONDS", 1800) * time.Second,
		CleanupDays:      getEnvAsInt("CLEANUP_DAYS", 30),

		BaseURL:     getEnv("SOURCE_BASE_URL", "https://chatgpt.com"),
		ResourceKey: getEnv("RESOURCE_KEY", "chatgpt.com"),
		ModelKey:    getEnv("MODEL_KEY", "gpt4o"),

		GlobalRequestsPerMinute:   getEnvAsFloat("GLOBAL_REQUESTS_PER_MINUTE", 0.83),
		GlobalBurst:               getEnvAsFloat("GLOBAL_BURST", 5),
		ResourceRequestsPerMinute: getEnvAsFloat("RESOURCE_REQUESTS_PER_MINUTE", 0.28),
		ResourceBurst:             getEnvAsFloat("RESOURCE_BURST", 3),
		QuotaFile:                 getEnv("QUOTA_FILE", ""),
	}
}

// PostgresDSN assembles the pgx connection string.
func (c *Config) PostgresDSN() string {
	return "postgres://" + c.PostgresUser + ":" + c.PostgresPassword +
		"@" + c.PostgresHost + ":" + c.PostgresPort + "/" + c.PostgresDB
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback))
}
