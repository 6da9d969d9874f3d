package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Port   string
	LogDir string

	DBDriver   string
	DBPath     string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	JWTSecret string
	TokenTTL  time.Duration

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIOPublicURL string

	LLMProvider  string
	LLMBaseURL   string
	OpenAIAPIKey string
	GeminiAPIKey string

	TutorProfile      string
	Timezone          string
	ExportDir         string
	ExportKeepLocal   bool
	KeepAliveInterval time.Duration
	TelemetryEnabled  bool
}

func LoadConfig() Config {
	// A missing .env is normal in deployed environments.
	_ = godotenv.Load()

	return Config{
		Port:   getEnv("PORT", "8000"),
		LogDir: getEnv("LOG_DIR", "./logs"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBPath:     getEnv("DB_PATH", "coach.db"),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", ""),
		DBName:     getEnv("DB_NAME", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getDuration("TOKEN_TTL", 24*time.Hour),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "essay-coach"),
		MinIOUseSSL:    getBool("MINIO_USE_SSL", false),
		MinIOPublicURL: getEnv("MINIO_PUBLIC_URL", ""),

		LLMProvider:  getEnv("LLM_PROVIDER", ProviderOpenAI),
		LLMBaseURL:   getEnv("LLM_BASE_URL", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		TutorProfile:      getEnv("TUTOR_PROFILE", ""),
		Timezone:          getEnv("COACH_TIMEZONE", "Europe/London"),
		ExportDir:         getEnv("EXPORT_DIR", os.TempDir()),
		ExportKeepLocal:   getBool("EXPORT_KEEP_LOCAL", false),
		KeepAliveInterval: getDuration("KEEPALIVE_INTERVAL", 60*time.Second),
		TelemetryEnabled:  getBool("TELEMETRY_ENABLED", false),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
