// Package config loads process configuration from defaults, an optional
// .env file, and EVERGREEN_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/evergreenhq/evergreen/internal/feed"
	"github.com/evergreenhq/evergreen/internal/gemini"
)

type Config struct {
	Server  ServerConfig
	Gemini  GeminiConfig
	Feed    FeedConfig
	Ingest  IngestConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type GeminiConfig struct {
	BaseURL         string
	APIKey          string
	ChatModel       string
	EmbedModel      string
	EmbedDimensions int
}

type FeedConfig struct {
	URL     string
	Timeout time.Duration
}

type IngestConfig struct {
	BatchSize  int
	BatchDelay time.Duration
	Interval   time.Duration // 0 disables scheduled ingestion
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    8000,
			MCPPort: 8001,
		},
		Gemini: GeminiConfig{
			BaseURL:         "https://generativelanguage.googleapis.com",
			ChatModel:       "gemini-2.5-flash",
			EmbedModel:      "text-embedding-004",
			EmbedDimensions: 768,
		},
		Feed: FeedConfig{
			URL:     feed.DefaultURL,
			Timeout: 60 * time.Second,
		},
		Ingest: IngestConfig{
			BatchSize:  10,
			BatchDelay: time.Second,
			Interval:   24 * time.Hour,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "evergreen-data"
		}
	}
	return filepath.Join(dir, "evergreen")
}

// Load builds the configuration from defaults, a .env file in the working
// directory when present, and environment variables. A missing Gemini API
// key is the only fatal condition.
func Load() (Config, error) {
	// Ignore a missing .env; explicit environment always wins anyway.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnv(&cfg)

	if cfg.Gemini.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: Gemini API key. Set it via GOOGLE_API_KEY")
	}
	if !gemini.ValidDimension(cfg.Gemini.EmbedDimensions) {
		return Config{}, fmt.Errorf("invalid embedding dimensions %d (supported: 768, 1536, 3072)", cfg.Gemini.EmbedDimensions)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envString("GOOGLE_API_KEY", &cfg.Gemini.APIKey)
	envString("EVERGREEN_GEMINI_BASE_URL", &cfg.Gemini.BaseURL)
	envString("EVERGREEN_CHAT_MODEL", &cfg.Gemini.ChatModel)
	envString("EVERGREEN_EMBEDDING_MODEL", &cfg.Gemini.EmbedModel)
	envInt("EVERGREEN_EMBEDDING_DIMENSIONS", &cfg.Gemini.EmbedDimensions)

	envInt("EVERGREEN_PORT", &cfg.Server.Port)
	envInt("EVERGREEN_MCP_PORT", &cfg.Server.MCPPort)

	envString("EVERGREEN_FEED_URL", &cfg.Feed.URL)
	envDuration("EVERGREEN_FEED_TIMEOUT", &cfg.Feed.Timeout)

	envInt("EVERGREEN_INGEST_BATCH_SIZE", &cfg.Ingest.BatchSize)
	envDuration("EVERGREEN_INGEST_BATCH_DELAY", &cfg.Ingest.BatchDelay)
	envDuration("EVERGREEN_INGEST_INTERVAL", &cfg.Ingest.Interval)

	envString("EVERGREEN_DATA_DIR", &cfg.Storage.DataDir)
	envString("EVERGREEN_LOG_LEVEL", &cfg.Log.Level)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
