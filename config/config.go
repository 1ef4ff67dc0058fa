package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Backend modes selectable via BACKEND_MODE. Read once at startup; nothing
// above the backend layer branches on the active mode.
const (
	ModeLive = "live"
	ModeRest = "rest"
)

type Config struct {
	AppPort     string
	AppMode     string
	BackendMode string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret    string
	JWTExpiryMin int

	// Polled-REST mode.
	RestBaseURL        string
	DirectoryPollEvery time.Duration
	MessagesPollEvery  time.Duration
	LocalStateDir      string

	// Presence.
	HeartbeatInterval  time.Duration
	HeartbeatStaleness time.Duration

	// Live store outbox drain interval.
	OutboxInterval time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		AppMode:     getEnv("APP_MODE", "debug"),
		BackendMode: getEnv("BACKEND_MODE", ModeLive),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "gigchat"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret:    getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin: getEnvAsInt("JWT_EXPIRY_MIN", 60),

		RestBaseURL:        getEnv("REST_BASE_URL", "http://localhost:8080"),
		DirectoryPollEvery: getEnvAsDuration("DIRECTORY_POLL_EVERY", 3*time.Second),
		MessagesPollEvery:  getEnvAsDuration("MESSAGES_POLL_EVERY", 2500*time.Millisecond),
		LocalStateDir:      getEnv("LOCAL_STATE_DIR", ".gigchat"),

		HeartbeatInterval:  getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		HeartbeatStaleness: getEnvAsDuration("HEARTBEAT_STALENESS", 70*time.Second),

		OutboxInterval: getEnvAsDuration("OUTBOX_INTERVAL", 200*time.Millisecond),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
