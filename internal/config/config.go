package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	// Prediction backend
	PredictorBaseURL string
	PredictorTimeout time.Duration

	// Chat pacing
	TypingDelay     time.Duration
	SuggestDebounce time.Duration

	// Session storage. Memory is used when both are empty.
	DatabaseURL string
	RedisURL    string
	SessionTTL  time.Duration

	// Reports
	TelegramToken  string
	DoctorChatID   int64
	ReportFontPath string

	AllowedOrigins string
}

// Load reads configuration from the environment, after loading an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		PredictorBaseURL: getEnv("PREDICTOR_BASE_URL", "http://localhost:8000"),
		PredictorTimeout: getEnvAsDuration("PREDICTOR_TIMEOUT_SECONDS", 30, time.Second),
		TypingDelay:      getEnvAsDuration("TYPING_DELAY_MS", 1000, time.Millisecond),
		SuggestDebounce:  getEnvAsDuration("SUGGEST_DEBOUNCE_MS", 300, time.Millisecond),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		SessionTTL:       getEnvAsDuration("SESSION_TTL_MINUTES", 120, time.Minute),
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		DoctorChatID:     getEnvAsInt64("DOCTOR_CHAT_ID", 0),
		ReportFontPath:   getEnv("REPORT_FONT_PATH", ""),
		AllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
	}

	return cfg, nil
}

// Debug reports whether verbose logging was requested.
func (c *Config) Debug() bool {
	return c.LogLevel == "DEBUG"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration reads an integer count of unit. Negative values fall back to the default.
func getEnvAsDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	n := getEnvAsInt(key, defaultValue)
	if n < 0 {
		log.Printf("Warning: Negative value for %s, using default %d", key, defaultValue)
		n = defaultValue
	}
	return time.Duration(n) * unit
}
