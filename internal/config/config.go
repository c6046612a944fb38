// Package config loads modus.yaml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all migration tool configuration.
type Config struct {
	// LLM collaborator
	LLM LLMConfig `yaml:"llm"`

	// Embedding collaborator
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Metadata store
	Store StoreConfig `yaml:"store"`

	// Vector index
	Index IndexConfig `yaml:"index"`

	// Context retrieval engine
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// HTTP surface
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the language-model collaborator.
type LLMConfig struct {
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	BaseURL         string `yaml:"base_url"`
	Timeout         string `yaml:"timeout"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	CacheEnabled    bool   `yaml:"cache_enabled"`
}

// EmbeddingConfig configures the embedding collaborator.
type EmbeddingConfig struct {
	// Provider: "ollama" or "genai"
	Provider       string `yaml:"provider"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	TaskType       string `yaml:"task_type"`
	// Inputs longer than MaxChars are silently truncated before embedding.
	MaxChars  int `yaml:"max_chars"`
	BatchSize int `yaml:"batch_size"`
}

// StoreConfig configures the SQLite metadata store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// IndexConfig configures the vector index snapshot.
type IndexConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
}

// RetrievalConfig configures the context retrieval engine.
type RetrievalConfig struct {
	KSearch int `yaml:"k_search"`
	KPick   int `yaml:"k_pick"`
	// ScanCap bounds the full-index fallback scan.
	ScanCap int `yaml:"scan_cap"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StatePath string `yaml:"state_path"`
}

// LoggingConfig mirrors the section consumed by the logging package.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Model:           "gemini-2.5-flash",
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Timeout:         "120s",
			MaxOutputTokens: 4096,
			CacheEnabled:    true,
		},
		Embedding: EmbeddingConfig{
			Provider:       "genai",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "RETRIEVAL_DOCUMENT",
			MaxChars:       8000,
			BatchSize:      32,
		},
		Store: StoreConfig{
			DatabasePath: filepath.Join(".modus", "migration_context.db"),
		},
		Index: IndexConfig{
			SnapshotPath: filepath.Join(".modus", "vector_index.db"),
		},
		Retrieval: RetrievalConfig{
			KSearch: 30,
			KPick:   10,
			ScanCap: 1000,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			StatePath: filepath.Join(".modus", "workflow_state.json"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads modus.yaml from the workspace, merges it over defaults,
// and applies environment overrides. A missing file yields defaults.
func Load(workspace string) (Config, error) {
	cfg := Default()

	path := filepath.Join(workspace, "modus.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values,
// so API keys stay out of checked-in config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MODUS_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = v
		}
		if cfg.Embedding.GenAIAPIKey == "" {
			cfg.Embedding.GenAIAPIKey = v
		}
	}
	if v := os.Getenv("MODUS_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("MODUS_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("MODUS_GENAI_API_KEY"); v != "" {
		cfg.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("MODUS_SCAN_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retrieval.ScanCap = n
		}
	}
}

// LLMTimeout parses the configured LLM timeout, falling back to 120s.
func (c Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// Validate reports configuration errors that would make a run impossible.
func (c Config) Validate() error {
	if c.Retrieval.KSearch <= 0 {
		return fmt.Errorf("retrieval.k_search must be positive, got %d", c.Retrieval.KSearch)
	}
	if c.Retrieval.KPick <= 0 {
		return fmt.Errorf("retrieval.k_pick must be positive, got %d", c.Retrieval.KPick)
	}
	if c.Retrieval.ScanCap <= 0 {
		return fmt.Errorf("retrieval.scan_cap must be positive, got %d", c.Retrieval.ScanCap)
	}
	if c.Embedding.MaxChars <= 0 {
		return fmt.Errorf("embedding.max_chars must be positive, got %d", c.Embedding.MaxChars)
	}
	return nil
}
