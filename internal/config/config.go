// Package config handles cooagent configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/cooagent/config.yaml, /etc/cooagent/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "cooagent", "config.yaml"))
	}

	paths = append(paths, "/etc/cooagent/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all cooagent configuration.
type Config struct {
	Models        ModelsConfig        `yaml:"models"`
	Anthropic     AnthropicConfig     `yaml:"anthropic"`
	Embeddings    EmbeddingsConfig    `yaml:"embeddings"`
	Agent         AgentConfig         `yaml:"agent"`
	Dataset       DatasetConfig       `yaml:"dataset"`
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`
	DataDir       string              `yaml:"data_dir"`
	LogLevel      string              `yaml:"log_level"`
}

// ModelsConfig defines which chat model answers queries.
type ModelsConfig struct {
	Default   string `yaml:"default"`
	Provider  string `yaml:"provider"` // ollama, anthropic
	OllamaURL string `yaml:"ollama_url"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// EmbeddingsConfig defines embedding generation settings.
type EmbeddingsConfig struct {
	Model   string `yaml:"model"`   // Embedding model name (e.g., nomic-embed-text)
	BaseURL string `yaml:"baseurl"` // Ollama URL (defaults to models.ollama_url)
}

// AgentConfig bounds a single orchestration run.
type AgentConfig struct {
	// MaxIterations caps model-tool round trips per query (default 25).
	MaxIterations int `yaml:"max_iterations"`
	// TimeoutSec is the wall-clock limit for one query (default 25).
	TimeoutSec int `yaml:"timeout_sec"`
}

// Timeout returns the configured run deadline as a duration.
func (a AgentConfig) Timeout() time.Duration {
	if a.TimeoutSec <= 0 {
		return 25 * time.Second
	}
	return time.Duration(a.TimeoutSec) * time.Second
}

// DatasetConfig locates the merchant dataset.
type DatasetConfig struct {
	// DBPath is the SQLite database holding the imported dataset.
	// Defaults to <data_dir>/catalog.db.
	DBPath string `yaml:"db_path"`
	// CSVDir holds the merchant CSV exports for `cooagent import`.
	CSVDir string `yaml:"csv_dir"`
}

// KnowledgeBaseConfig defines document retrieval settings.
type KnowledgeBaseConfig struct {
	// DBPath is the SQLite database holding ingested passages.
	// Defaults to <data_dir>/kb.db.
	DBPath string `yaml:"db_path"`
	// DocsDir holds the source documents for `cooagent ingest`.
	DocsDir string `yaml:"docs_dir"`
	// ChunkSize is the target passage size in characters (default 700).
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is carried between adjacent passages (default 50).
	ChunkOverlap int `yaml:"chunk_overlap"`
	// TopK is how many passages the retrieval tool returns (default 4).
	TopK int `yaml:"top_k"`
}

// CatalogDB returns the dataset database path, applying the data_dir default.
func (c *Config) CatalogDB() string {
	if c.Dataset.DBPath != "" {
		return c.Dataset.DBPath
	}
	return filepath.Join(c.DataDir, "catalog.db")
}

// KnowledgeDB returns the knowledge base database path, applying the
// data_dir default.
func (c *Config) KnowledgeDB() string {
	if c.KnowledgeBase.DBPath != "" {
		return c.KnowledgeBase.DBPath
	}
	return filepath.Join(c.DataDir, "kb.db")
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			Default:   "qwen3:4b",
			Provider:  "ollama",
			OllamaURL: "http://localhost:11434",
		},
		Embeddings: EmbeddingsConfig{
			Model: "nomic-embed-text",
		},
		Agent: AgentConfig{
			MaxIterations: 25,
			TimeoutSec:    25,
		},
		KnowledgeBase: KnowledgeBaseConfig{
			ChunkSize:    700,
			ChunkOverlap: 50,
			TopK:         4,
		},
		DataDir: "data",
	}
}
