package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the FinSight service.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Blob       BlobConfig       `mapstructure:"blob"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Vector     VectorConfig     `mapstructure:"vector"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// PostgresConfig describes the warehouse connection.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles a postgres connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig describes the document metadata store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BlobConfig describes local object storage and signed-URL issuance.
type BlobConfig struct {
	RootDir       string        `mapstructure:"root_dir"`
	SigningSecret string        `mapstructure:"signing_secret"`
	URLTTL        time.Duration `mapstructure:"url_ttl"`
	BaseURL       string        `mapstructure:"base_url"`
}

// ExtractionConfig configures the remote text-extraction provider and the
// polling state machine that drives it.
type ExtractionConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Budget       time.Duration `mapstructure:"budget"`
	KnownJobID   string        `mapstructure:"known_job_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig configures the embedding provider. The model and dimension
// are fixed at index-creation time and must match on every call.
type EmbeddingConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// VectorConfig configures the vector index client.
type VectorConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	IndexName string        `mapstructure:"index_name"`
	Namespace string        `mapstructure:"namespace"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ChunkingConfig bounds section-aware chunking.
type ChunkingConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

// TelemetryConfig toggles metrics exposure.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file and environment. Environment
// variables use the FINSIGHT_ prefix with dots replaced by underscores
// (e.g. FINSIGHT_POSTGRES_URL).
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("blob.root_dir", "./data/uploads")
	viper.SetDefault("blob.url_ttl", 30*time.Minute)
	viper.SetDefault("extraction.base_url", "https://api.cloud.llamaindex.ai/api/parsing")
	viper.SetDefault("extraction.poll_interval", 10*time.Second)
	viper.SetDefault("extraction.retry_backoff", 5*time.Second)
	viper.SetDefault("extraction.budget", 300*time.Second)
	viper.SetDefault("extraction.timeout", 30*time.Second)
	viper.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	viper.SetDefault("embedding.model", "text-embedding-ada-002")
	viper.SetDefault("embedding.dimension", 1536)
	viper.SetDefault("embedding.timeout", 30*time.Second)
	viper.SetDefault("vector.timeout", 15*time.Second)
	viper.SetDefault("chunking.max_tokens", 8000)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("FINSIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; env and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
