package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"askdocs/internal/models"
)

const (
	DefaultConfigPath = "./configs/config.yaml"

	defaultChunkSize         = 1000 // runes
	defaultTopK              = 5
	defaultEmbedConcurrency  = 4
	defaultIngestConcurrency = 2
	defaultEmbedTimeout      = 30 * time.Second
	defaultGenerateTimeout   = 120 * time.Second
	defaultHashDimension     = 512
	defaultChromemPath       = "./chromemdb"
	defaultCollection        = "askdocs"
	defaultSQLitePath        = "./askdocs.sqlite"
)

type Config struct {
	Log       LogConfig   `yaml:"log"`
	RAG       RAGConfig   `yaml:"rag"`
	Embedder  LLMConfig   `yaml:"embedder"`
	Generator LLMConfig   `yaml:"generator"`
	Store     StoreConfig `yaml:"store"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type RAGConfig struct {
	ChunkSize         int           `yaml:"chunk_size"`
	ChunkOverlap      int           `yaml:"chunk_overlap"`
	BoundaryTolerance int           `yaml:"boundary_tolerance"`
	TopK              int           `yaml:"top_k"`
	MinScore          *float64      `yaml:"min_score,omitempty"`
	EmbedConcurrency  int           `yaml:"embed_concurrency"`
	IngestConcurrency int           `yaml:"ingest_concurrency"`
	EmbedTimeout      time.Duration `yaml:"embed_timeout"`
	GenerateTimeout   time.Duration `yaml:"generate_timeout"`
}

// LLMConfig configures an embedding or generation backend.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Key       string `yaml:"key"`
	Dimension int    `yaml:"dimension,omitempty"`
}

type StoreConfig struct {
	Type     string         `yaml:"type"`
	Chromem  ChromemConfig  `yaml:"chromem"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

type ChromemConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver"`
	Debug    bool   `yaml:"debug"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// LoadConfig reads the YAML file at path, expands ${VAR} references from the
// environment (after loading .env if present), applies defaults and validates.
// A missing file yields the default configuration.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return cfg, cfg.Validate()
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, models.Wrap(models.ErrConfiguration, err, "parse %s", path)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present: a local
// hash embedder, the mock generator and an on-disk chromem store.
func Default() *Config {
	cfg := &Config{
		Log:       LogConfig{Level: "info", Pretty: true},
		Embedder:  LLMConfig{Provider: "hash", Dimension: defaultHashDimension},
		Generator: LLMConfig{Provider: "mock"},
		Store:     StoreConfig{Type: "chromem"},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.EmbedConcurrency == 0 {
		cfg.RAG.EmbedConcurrency = defaultEmbedConcurrency
	}
	if cfg.RAG.IngestConcurrency == 0 {
		cfg.RAG.IngestConcurrency = defaultIngestConcurrency
	}
	if cfg.RAG.EmbedTimeout == 0 {
		cfg.RAG.EmbedTimeout = defaultEmbedTimeout
	}
	if cfg.RAG.GenerateTimeout == 0 {
		cfg.RAG.GenerateTimeout = defaultGenerateTimeout
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = "hash"
	}
	if cfg.Embedder.Provider == "hash" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = defaultHashDimension
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = "mock"
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.Chromem.Path == "" {
		cfg.Store.Chromem.Path = defaultChromemPath
	}
	if cfg.Store.Chromem.Collection == "" {
		cfg.Store.Chromem.Collection = defaultCollection
	}
	if cfg.Store.Postgres.Driver == "" {
		cfg.Store.Postgres.Driver = "pgdriver"
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = defaultSQLitePath
	}
}
