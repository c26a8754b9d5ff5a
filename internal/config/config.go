// Package config loads docserver's configuration: sensible defaults,
// layered with an optional YAML file and then environment variable
// overrides (highest precedence), mirroring the teacher's layered
// Config/mergeWith/applyEnvOverrides pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is docserver's complete runtime configuration, organized into the
// sections SPEC_FULL §6 names.
type Config struct {
	Store     StoreConfig     `yaml:"store" json:"store"`
	Embedder  EmbedderConfig  `yaml:"embedder" json:"embedder"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Fetch     FetchConfig     `yaml:"fetch" json:"fetch"`
	Ingestion IngestionConfig `yaml:"ingestion" json:"ingestion"`
}

// StoreConfig locates and sizes the chunk store.
type StoreConfig struct {
	Path       string `yaml:"path" json:"path"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	Metric     string `yaml:"metric" json:"metric"`
}

// EmbedderConfig selects and sizes the embedding provider.
type EmbedderConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
}

// ServerConfig configures the REST/MCP HTTP listener and upstream registry.
type ServerConfig struct {
	HTTPPort           int    `yaml:"http_port" json:"http_port"`
	LogLevel           string `yaml:"log_level" json:"log_level"`
	UpstreamContext7URL string `yaml:"upstream_context7_url" json:"upstream_context7_url"`
}

// FetchConfig bounds URL source acquisition.
type FetchConfig struct {
	TimeoutSeconds  int   `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxContentBytes int64 `yaml:"max_content_bytes" json:"max_content_bytes"`
}

// IngestionConfig bounds ingestion concurrency.
type IngestionConfig struct {
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:       defaultStorePath(),
			Dimensions: 256,
			Metric:     "cos",
		},
		Embedder: EmbedderConfig{
			Provider:   "static",
			Model:      "",
			Dimensions: 256,
			CacheSize:  10000,
			OllamaHost: "",
		},
		Server: ServerConfig{
			HTTPPort: 8765,
			LogLevel: "info",
		},
		Fetch: FetchConfig{
			TimeoutSeconds:  30,
			MaxContentBytes: 10 << 20,
		},
		Ingestion: IngestionConfig{
			Concurrency: 8,
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docserver/store"
	}
	return filepath.Join(home, ".docserver", "store")
}

// Load builds a Config from defaults, an optional YAML file under dir
// (.docserver.yaml, falling back to .docserver.yml), a .env file (if
// present, via godotenv) and environment variable overrides, in that
// precedence order, then validates the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	_ = godotenv.Load(filepath.Join(dir, ".env"))
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".docserver.yaml", ".docserver.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return c.loadYAML(path)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.Dimensions != 0 {
		c.Store.Dimensions = other.Store.Dimensions
	}
	if other.Store.Metric != "" {
		c.Store.Metric = other.Store.Metric
	}
	if other.Embedder.Provider != "" {
		c.Embedder.Provider = other.Embedder.Provider
	}
	if other.Embedder.Model != "" {
		c.Embedder.Model = other.Embedder.Model
	}
	if other.Embedder.Dimensions != 0 {
		c.Embedder.Dimensions = other.Embedder.Dimensions
	}
	if other.Embedder.CacheSize != 0 {
		c.Embedder.CacheSize = other.Embedder.CacheSize
	}
	if other.Embedder.OllamaHost != "" {
		c.Embedder.OllamaHost = other.Embedder.OllamaHost
	}
	if other.Server.HTTPPort != 0 {
		c.Server.HTTPPort = other.Server.HTTPPort
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.UpstreamContext7URL != "" {
		c.Server.UpstreamContext7URL = other.Server.UpstreamContext7URL
	}
	if other.Fetch.TimeoutSeconds != 0 {
		c.Fetch.TimeoutSeconds = other.Fetch.TimeoutSeconds
	}
	if other.Fetch.MaxContentBytes != 0 {
		c.Fetch.MaxContentBytes = other.Fetch.MaxContentBytes
	}
	if other.Ingestion.Concurrency != 0 {
		c.Ingestion.Concurrency = other.Ingestion.Concurrency
	}
}

// applyEnvOverrides applies the environment variables named in SPEC_FULL
// §6, the highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("EMBEDDER_MODEL"); v != "" {
		c.Embedder.Model = v
	}
	if v := os.Getenv("EMBEDDER_PROVIDER"); v != "" {
		c.Embedder.Provider = v
	}
	if v := os.Getenv("EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedder.Dimensions = n
			c.Store.Dimensions = n
		}
	}
	if v := os.Getenv("UPSTREAM_CONTEXT7_URL"); v != "" {
		c.Server.UpstreamContext7URL = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.HTTPPort = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("FETCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Fetch.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("MAX_CONTENT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Fetch.MaxContentBytes = n
		}
	}
	if v := os.Getenv("INGESTION_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingestion.Concurrency = n
		}
	}
}

// Validate rejects a configuration that would fail at startup in a
// confusing way later (e.g. inside the store or embedder constructors).
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("config: store.path must not be empty")
	}
	if c.Store.Dimensions < 0 {
		return fmt.Errorf("config: store.dimensions must not be negative")
	}
	switch strings.ToLower(c.Store.Metric) {
	case "cos", "l2":
	default:
		return fmt.Errorf("config: store.metric must be \"cos\" or \"l2\", got %q", c.Store.Metric)
	}
	switch strings.ToLower(c.Embedder.Provider) {
	case "static", "ollama", "":
	default:
		return fmt.Errorf("config: embedder.provider must be \"static\" or \"ollama\", got %q", c.Embedder.Provider)
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("config: server.http_port must be in 1-65535, got %d", c.Server.HTTPPort)
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: fetch.timeout_seconds must be positive")
	}
	if c.Fetch.MaxContentBytes <= 0 {
		return fmt.Errorf("config: fetch.max_content_bytes must be positive")
	}
	if c.Ingestion.Concurrency <= 0 {
		return fmt.Errorf("config: ingestion.concurrency must be positive")
	}
	return nil
}

// WriteYAML marshals c as YAML and writes it to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
