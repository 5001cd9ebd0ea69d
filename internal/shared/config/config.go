package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	LLMProvider       string
	LLMModel          string
	OpenAIAPIKey      string
	OpenAITemperature float64
	OpenAIMaxTokens   int
	OpenAITimeout     time.Duration

	AnalysisBatchSize     int
	AnalysisRetryAttempts int
	FreshnessWindow       time.Duration
	RunRetentionDays      int

	WorkerConcurrency  int
	TaskMaxAttempts    int
	TaskSoftTimeLimit  time.Duration
	TaskHardTimeLimit  time.Duration
	DeadLetterTTL      time.Duration
	ScheduleFile       string

	AWSRegion             string
	NotificationsQueueURL string
	NotifyRatePerMinute   int
	NotifyBurst           int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	_ = godotenv.Load(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,
		DatabaseURL:     dbURL,

		LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
		LLMModel:          getEnv("OPENAI_MODEL", "gpt-4-turbo-preview"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAITemperature: getEnvFloat("OPENAI_TEMPERATURE", 0.7),
		OpenAIMaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 2000),
		OpenAITimeout:     time.Duration(getEnvInt("OPENAI_TIMEOUT_SECONDS", 60)) * time.Second,

		AnalysisBatchSize:     getEnvInt("ANALYSIS_BATCH_SIZE", 10),
		AnalysisRetryAttempts: getEnvInt("ANALYSIS_RETRY_ATTEMPTS", 3),
		FreshnessWindow:       time.Duration(getEnvInt("ANALYSIS_FRESHNESS_HOURS", 24)) * time.Hour,
		RunRetentionDays:      getEnvInt("RUN_RETENTION_DAYS", 90),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		TaskMaxAttempts:   getEnvInt("TASK_MAX_ATTEMPTS", 3),
		TaskSoftTimeLimit: time.Duration(getEnvInt("TASK_SOFT_TIME_LIMIT_SECONDS", 3300)) * time.Second,
		TaskHardTimeLimit: time.Duration(getEnvInt("TASK_HARD_TIME_LIMIT_SECONDS", 3600)) * time.Second,
		DeadLetterTTL:     time.Duration(getEnvInt("DEAD_LETTER_TTL_HOURS", 168)) * time.Hour,
		ScheduleFile:      getEnv("SCHEDULE_FILE", ""),

		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		NotificationsQueueURL: getEnv("NOTIFICATIONS_QUEUE_URL", ""),
		NotifyRatePerMinute:   getEnvInt("NOTIFY_RATE_PER_MINUTE", 60),
		NotifyBurst:           getEnvInt("NOTIFY_BURST", 10),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
