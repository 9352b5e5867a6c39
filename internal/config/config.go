// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MatchConfig controls ranking defaults.
type MatchConfig struct {
	TopK     int      `yaml:"top_k"`
	MinScore *float64 `yaml:"min_score,omitempty"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`
	BaseURL           string        `yaml:"base_url"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	CacheSize         int           `yaml:"cache_size"`
	Dimension         int           `yaml:"dimension"`
}

// RegistrationConfig holds registration policy.
type RegistrationConfig struct {
	DefaultCapacity int `yaml:"default_capacity"`
}

// NotifyConfig bounds asynchronous notification retries.
type NotifyConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	MaxInFlight int `yaml:"max_in_flight"`
}

// DatabaseConfig holds PostgreSQL connection settings. URL, when set,
// takes precedence over the individual fields.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// StorageConfig selects where raw uploads are kept.
type StorageConfig struct {
	Backend         string `yaml:"backend"`
	Dir             string `yaml:"dir"`
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
}

// Config is the root configuration.
type Config struct {
	Store        string             `yaml:"store"`
	Port         string             `yaml:"port"`
	LogMode      string             `yaml:"log_mode"`
	Match        MatchConfig        `yaml:"match"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Registration RegistrationConfig `yaml:"registration"`
	Notify       NotifyConfig       `yaml:"notify"`
	Database     DatabaseConfig     `yaml:"database"`
	Storage      StorageConfig      `yaml:"storage"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store:   "postgres",
		Port:    "8080",
		LogMode: "dev",
		Match:   MatchConfig{TopK: 5},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "text-embedding-3-small",
			Timeout:     30 * time.Second,
			MaxAttempts: 4,
			CacheSize:   1024,
			Dimension:   256,
		},
		Registration: RegistrationConfig{DefaultCapacity: 2},
		Notify:       NotifyConfig{MaxAttempts: 5, MaxInFlight: 64},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "advisormatch",
			SSLMode:  "disable",
			MaxConns: 20,
		},
		Storage: StorageConfig{Backend: "local", Dir: "./data/uploads", MaxUploadBytes: 10 << 20},
	}
}

// Load reads path (if it exists), fills defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	switch c.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("store must be postgres or memory, got %q", c.Store)
	}
	switch c.Embedding.Provider {
	case "openai", "hashing":
	default:
		return fmt.Errorf("embedding.provider must be openai or hashing, got %q", c.Embedding.Provider)
	}
	switch c.Storage.Backend {
	case "local", "gcs":
	default:
		return fmt.Errorf("storage.backend must be local or gcs, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "gcs" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for the gcs backend")
	}
	if c.Match.TopK < 0 {
		return fmt.Errorf("match.top_k must not be negative")
	}
	if ms := c.Match.MinScore; ms != nil && (*ms < -1 || *ms > 1) {
		return fmt.Errorf("match.min_score must be within [-1, 1]")
	}
	if c.Registration.DefaultCapacity < 0 {
		return fmt.Errorf("registration.default_capacity must not be negative")
	}
	return nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Port == "" {
		c.Port = d.Port
	}
	if c.Match.TopK == 0 {
		c.Match.TopK = d.Match.TopK
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = d.Embedding.BaseURL
	}
	if c.Embedding.APIKeyEnv == "" {
		c.Embedding.APIKeyEnv = d.Embedding.APIKeyEnv
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = d.Embedding.Model
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = d.Embedding.Timeout
	}
	if c.Embedding.MaxAttempts <= 0 {
		c.Embedding.MaxAttempts = d.Embedding.MaxAttempts
	}
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = d.Embedding.Dimension
	}
	if c.Notify.MaxAttempts <= 0 {
		c.Notify.MaxAttempts = d.Notify.MaxAttempts
	}
	if c.Notify.MaxInFlight <= 0 {
		c.Notify.MaxInFlight = d.Notify.MaxInFlight
	}
	if c.Storage.MaxUploadBytes <= 0 {
		c.Storage.MaxUploadBytes = d.Storage.MaxUploadBytes
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = d.Database.MaxConns
	}
}

// applyEnv lets well-known environment variables override the file.
func applyEnv(c *Config) {
	setString(&c.Store, "STORE")
	setString(&c.Port, "PORT")
	setString(&c.LogMode, "LOG_MODE")
	setInt(&c.Match.TopK, "MATCH_TOP_K")
	if v := strings.TrimSpace(os.Getenv("MATCH_MIN_SCORE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Match.MinScore = &f
		}
	}
	setString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&c.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Embedding.Timeout = d
		}
	}
	setInt(&c.Embedding.MaxAttempts, "EMBEDDING_MAX_ATTEMPTS")
	setInt(&c.Registration.DefaultCapacity, "DEFAULT_CAPACITY")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.Storage.Backend, "STORAGE_BACKEND")
	setString(&c.Storage.Dir, "STORAGE_DIR")
	setString(&c.Storage.Bucket, "STORAGE_BUCKET")
	setString(&c.Storage.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if i, err := strconv.Atoi(v); err == nil {
		*dst = i
	}
}
