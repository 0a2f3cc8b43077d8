package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Verbose  bool   `yaml:"verbose"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LLMConfig configures the chat-completion provider used for answers.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

// EmbeddingConfig configures the embedding provider. Provider is either
// "openai" (any OpenAI-compatible endpoint) or "ollama".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Key        string `yaml:"key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// StoreConfig selects the File/Chunk store backend: "postgres" or "memory".
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

type QueueConfig struct {
	Concurrency int           `yaml:"concurrency"`
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Redis       RedisConfig     `yaml:"redis"`
	Minio       MinioConfig     `yaml:"minio"`
	LLM         LLMConfig       `yaml:"llm"`
	Embedding   EmbeddingConfig `yaml:"embedding"`
	Store       StoreConfig     `yaml:"store"`
	Queue       QueueConfig     `yaml:"queue"`
	RAG         RAGConfig       `yaml:"rag"`
}

// TablePrefix namespaces storage table names by deployment environment,
// so a dev instance can share a database with production.
func (c *Config) TablePrefix() string {
	if c.Environment == "production" {
		return "mun_"
	}
	return "dev_mun_"
}

// LoadConfig reads the yaml config at path. A local .env file, if present,
// is loaded first; ${VAR} references in the yaml are expanded from the
// environment so secrets stay out of the file.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4747
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "postgres"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 10
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Queue.Concurrency == 0 {
		cfg.Queue.Concurrency = 4
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.BackoffBase == 0 {
		cfg.Queue.BackoffBase = time.Second
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 600
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 100
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
}

func validate(cfg *Config) error {
	switch cfg.Store.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown store backend %q", cfg.Store.Backend)
	}
	switch cfg.Embedding.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("config: unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return fmt.Errorf("config: chunk_overlap %d must be smaller than chunk_size %d",
			cfg.RAG.ChunkOverlap, cfg.RAG.ChunkSize)
	}
	return nil
}
