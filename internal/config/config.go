// Package config provides configuration loading for memoryd.
//
// Configuration is loaded from an optional YAML file and environment
// variables prefixed MEMORYD_ (environment wins). Every section carries
// its own defaults and validation.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete memoryd configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Catalog CatalogConfig `koanf:"catalog"`
	Blob    BlobConfig    `koanf:"blob"`
	Vector  VectorConfig  `koanf:"vector"`
	Intel   IntelConfig   `koanf:"intel"`
	Index   IndexConfig   `koanf:"index"`
	Search  SearchConfig  `koanf:"search"`
	Notify  NotifyConfig  `koanf:"notify"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CatalogConfig holds metadata catalog configuration.
type CatalogConfig struct {
	// Driver selects the catalog backend: "postgres" or "memory".
	Driver string `koanf:"driver"`
	DSN    Secret `koanf:"dsn"`
}

// BlobConfig holds blob store configuration.
type BlobConfig struct {
	// Root is the mount point of the file share memoryd writes under.
	Root string `koanf:"root"`
}

// VectorConfig holds vector index configuration.
type VectorConfig struct {
	// Provider selects the vector backend: "qdrant" or "chromem".
	Provider   string        `koanf:"provider"`
	Collection string        `koanf:"collection"`
	VectorSize int           `koanf:"vector_size"`
	Qdrant     QdrantConfig  `koanf:"qdrant"`
	Chromem    ChromemConfig `koanf:"chromem"`
}

// QdrantConfig holds Qdrant gRPC client configuration.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
}

// ChromemConfig holds embedded chromem-go configuration.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// IntelConfig holds text-intelligence (embedding/completion) configuration.
type IntelConfig struct {
	BaseURL    string   `koanf:"base_url"`
	APIKey     Secret   `koanf:"api_key"`
	Model      string   `koanf:"model"`
	EmbedModel string   `koanf:"embed_model"`
	Timeout    Duration `koanf:"timeout"`
}

// IndexConfig holds file indexing configuration.
type IndexConfig struct {
	MaxChunkSize int `koanf:"max_chunk_size"`
	BatchSize    int `koanf:"batch_size"`
}

// SearchConfig holds search engine configuration.
type SearchConfig struct {
	DefaultLimit  int `koanf:"default_limit"`
	ExcerptWindow int `koanf:"excerpt_window"`
}

// NotifyConfig holds NATS notification configuration.
type NotifyConfig struct {
	// URL is the NATS server URL. Empty disables notifications.
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9632,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			Driver: "memory",
		},
		Blob: BlobConfig{
			Root: "/var/lib/memoryd/blobs",
		},
		Vector: VectorConfig{
			Provider:   "chromem",
			Collection: "memoryd_chunks",
			VectorSize: 1536,
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
			Chromem: ChromemConfig{
				Path: "/var/lib/memoryd/chromem",
			},
		},
		Intel: IntelConfig{
			Model:      "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
			Timeout:    Duration(30 * time.Second),
		},
		Index: IndexConfig{
			MaxChunkSize: 1000,
			BatchSize:    100,
		},
		Search: SearchConfig{
			DefaultLimit:  10,
			ExcerptWindow: 300,
		},
		Notify: NotifyConfig{
			Subject: "memoryd.triggers",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	switch c.Catalog.Driver {
	case "postgres":
		if !c.Catalog.DSN.IsSet() {
			return errors.New("catalog DSN required for postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown catalog driver: %q", c.Catalog.Driver)
	}
	if c.Blob.Root == "" {
		return errors.New("blob root required")
	}
	switch c.Vector.Provider {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("unknown vector provider: %q", c.Vector.Provider)
	}
	if c.Vector.Collection == "" {
		return errors.New("vector collection name required")
	}
	if c.Index.MaxChunkSize <= 0 {
		return errors.New("max chunk size must be positive")
	}
	if c.Index.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	if c.Search.DefaultLimit <= 0 {
		return errors.New("default search limit must be positive")
	}
	if c.Intel.Timeout.Duration() <= 0 {
		return errors.New("intel timeout must be positive")
	}
	return nil
}
