package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port   string
	JWTKey string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  int // per-operation timeout in milliseconds

	// Cache tuning
	LocalCacheSize       int // max entries in the process-local tier
	CompressionThreshold int // payloads above this many bytes get compressed
	TikuListTTL          int // seconds, bank list and file options
	BankIndexTTL         int // seconds, a bank's question id list
	QuestionTTL          int // seconds, individual question records
	WarmupBankLimit      int // banks eagerly reloaded after a full refresh

	// Background jobs
	UsageFlushSpec   string // cron spec for the usage counter flush
	ReaperSpec       string // cron spec for the stale session reaper
	SessionStaleMins int    // minutes without activity before a session is abandoned

	StoreRetries int // attempts per durable store call before surfacing failure
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:   getEnv("PORT", "3000"),
		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "qbank"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisTimeout:  getEnvInt("REDIS_TIMEOUT_MS", 500),

		LocalCacheSize:       getEnvInt("LOCAL_CACHE_SIZE", 1000),
		CompressionThreshold: getEnvInt("COMPRESSION_THRESHOLD", 1024),
		TikuListTTL:          getEnvInt("TIKU_LIST_TTL", 1800),
		BankIndexTTL:         getEnvInt("BANK_INDEX_TTL", 3600),
		QuestionTTL:          getEnvInt("QUESTION_TTL", 7200),
		WarmupBankLimit:      getEnvInt("WARMUP_BANK_LIMIT", 10),

		UsageFlushSpec:   getEnv("USAGE_FLUSH_SPEC", "@every 5m"),
		ReaperSpec:       getEnv("REAPER_SPEC", "@every 1h"),
		SessionStaleMins: getEnvInt("SESSION_STALE_MINUTES", 1440),

		StoreRetries: getEnvInt("STORE_RETRIES", 3),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}
