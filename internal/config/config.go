package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	AI      AIConfig      `json:"ai"`
	Index   IndexConfig   `json:"index"`
	Quota   QuotaConfig   `json:"quota"`
	Redis   RedisConfig   `json:"redis"`
	Worker  WorkerConfig  `json:"worker"`
}

type ServerConfig struct {
	Address string `json:"address"`
}

// StorageConfig selects the blob backend. Mode "s3" uses two buckets (raw
// documents and index/status artifacts); mode "memory" keeps everything in
// process for local runs and tests.
type StorageConfig struct {
	Mode            string `json:"mode"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	PDFBucket       string `json:"pdf_bucket"`
	IndexBucket     string `json:"index_bucket"`
}

type AIConfig struct {
	Provider        string `json:"provider"`
	BaseURL         string `json:"base_url"`
	APIKey          string `json:"api_key"`
	ChatModel       string `json:"chat_model"`
	EmbedModel      string `json:"embed_model"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

type IndexConfig struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
	TopK         int `json:"top_k"`
}

type QuotaConfig struct {
	MaxTokensPerSession int64 `json:"max_tokens_per_session"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type WorkerConfig struct {
	QueueSize          int `json:"queue_size"`
	IdleTimeoutMinutes int `json:"idle_timeout_minutes"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8000"
	}
	if c.Storage.Mode == "" {
		c.Storage.Mode = "s3"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Index.ChunkSize == 0 {
		c.Index.ChunkSize = 1000
	}
	if c.Index.ChunkOverlap == 0 {
		c.Index.ChunkOverlap = 150
	}
	if c.Index.TopK == 0 {
		c.Index.TopK = 6
	}
	if c.Quota.MaxTokensPerSession == 0 {
		c.Quota.MaxTokensPerSession = 10000
	}
	if c.AI.MaxOutputTokens == 0 {
		c.AI.MaxOutputTokens = 512
	}
	if c.AI.EmbedModel == "" {
		c.AI.EmbedModel = "text-embedding-3-small"
	}
	if c.Worker.QueueSize == 0 {
		c.Worker.QueueSize = 16
	}
	if c.Worker.IdleTimeoutMinutes == 0 {
		c.Worker.IdleTimeoutMinutes = 5
	}
}

func (c *Config) validate() error {
	switch c.Storage.Mode {
	case "s3":
		if c.Storage.PDFBucket == "" || c.Storage.IndexBucket == "" {
			return fmt.Errorf("storage: pdf_bucket and index_bucket must be configured in s3 mode")
		}
	case "memory":
	default:
		return fmt.Errorf("storage: unknown mode %q", c.Storage.Mode)
	}
	if c.AI.Provider == "" {
		return fmt.Errorf("ai: provider must be configured")
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("ai: api_key must be configured")
	}
	if c.AI.ChatModel == "" {
		return fmt.Errorf("ai: chat_model must be configured")
	}
	if c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("index: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Index.ChunkOverlap, c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 {
		return fmt.Errorf("index: chunk_overlap cannot be negative")
	}
	return nil
}
