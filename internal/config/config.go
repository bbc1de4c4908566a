package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	DBPath     string

	PredictBackend string
	GeminiAPIKey   string
	GeminiModel    string
	GeminiBaseURL  string
	ClaudeAPIKey   string
	ClaudeModel    string
	OllamaHost     string
	OllamaModel    string

	ReceiptBackend   string
	ReceiptLocalPath string
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string

	AuthJWTSecret string
	DefaultUserID string

	HistoryWindow    int
	MaxSuggestions   int
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads settings from the environment. A .env file in the working
// directory, when present, is applied first without overriding variables
// that are already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		DBPath:           getEnv("DB_PATH", "/data/restockr.db"),
		PredictBackend:   getEnv("PREDICT_BACKEND", "gemini"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		ClaudeAPIKey:     getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:      getEnv("CLAUDE_MODEL", "claude-sonnet-4-5"),
		OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llava"),
		ReceiptBackend:   getEnv("RECEIPT_BACKEND", "local"),
		ReceiptLocalPath: getEnv("RECEIPT_LOCAL_PATH", "/data/receipts"),
		S3Bucket:         getEnv("S3_BUCKET", "receipts"),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:      getEnv("S3_SECRET_KEY", ""),
		AuthJWTSecret:    getEnv("AUTH_JWT_SECRET", ""),
		DefaultUserID:    getEnv("DEFAULT_USER_ID", "household"),
		HistoryWindow:    getEnvInt("HISTORY_WINDOW", 100),
		MaxSuggestions:   getEnvInt("MAX_SUGGESTIONS", 5),
		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 5),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", time.Second),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		LogFile:          getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid integer setting", "key", key, "value", raw)
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		slog.Warn("ignoring invalid duration setting", "key", key, "value", raw)
		return defaultVal
	}
	return d
}
