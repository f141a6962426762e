package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string

	StoreDriver string
	DBPath      string
	PostgresDSN string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	ImagePath string

	MirrorLogURL   string
	MirrorImageURL string
	MirrorTimeout  time.Duration

	ChatBackend    string
	OllamaHost     string
	OllamaModel    string
	ClaudeAPIKey   string
	ClaudeModel    string
	ChatTimeout    time.Duration
	ChatRatePerSec float64

	RoomCatalog   string
	SampleSource  string
	MaxImageBytes int64

	LogLevel  string
	LogFormat string
	LogFile   string
}

// LoadEnvFile copies the variables in a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func Load() *Config {
	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		DBPath:      getEnv("DB_PATH", "/data/renobudget.db"),
		PostgresDSN: getEnv("POSTGRES_DSN", ""),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3PathStyle: getEnvBool("S3_PATH_STYLE", false),

		ImagePath: getEnv("IMAGE_PATH", "/data/images"),

		MirrorLogURL:   getEnv("MIRROR_LOG_URL", ""),
		MirrorImageURL: getEnv("MIRROR_IMAGE_URL", ""),
		MirrorTimeout:  getEnvDuration("MIRROR_TIMEOUT", 5*time.Second),

		ChatBackend:    getEnv("CHAT_BACKEND", "ollama"),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "llama3.2"),
		ClaudeAPIKey:   getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:    getEnv("CLAUDE_MODEL", "claude-3-5-haiku-latest"),
		ChatTimeout:    getEnvDuration("CHAT_TIMEOUT", 60*time.Second),
		ChatRatePerSec: getEnvFloat("CHAT_RATE_PER_SEC", 1),

		RoomCatalog:   getEnv("ROOM_CATALOG", ""),
		SampleSource:  getEnv("SAMPLE_SOURCE", ""),
		MaxImageBytes: getEnvInt64("MAX_IMAGE_BYTES", 5*1024*1024),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if n, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return f
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return defaultVal
}
