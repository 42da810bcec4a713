package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"machgate/internal/entropy"
)

// DefaultConfigPath is where the CLI looks for configuration, relative to the workspace.
const DefaultConfigPath = ".machgate/config.yaml"

// Config holds all machgate configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Reasoning oracle used for entity extraction, collision audit and generation
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine backing the vector store
	Embedding EmbeddingConfig `yaml:"embedding"`

	// SQLite persistence
	Store StoreConfig `yaml:"store"`

	// Repository content API and ingestion limits
	GitHub GitHubConfig `yaml:"github"`

	// Mach-Trace collision auditing
	Trace TraceConfig `yaml:"trace"`

	// Mission orchestration
	Mission MissionConfig `yaml:"mission"`

	// Scorer constants; zero fields fall back to the calibrated defaults
	Entropy entropy.Params `yaml:"entropy"`

	// Optional prompt override file; empty uses the embedded set
	PromptsPath string `yaml:"prompts_path"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the reasoning oracle.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // genai, ollama
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // genai, ollama, hash
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	TaskType   string `yaml:"task_type"`
}

// StoreConfig configures the SQLite database shared by the vector and mission stores.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	SearchK      int    `yaml:"search_k"`
}

// GitHubConfig configures repository ingestion.
type GitHubConfig struct {
	Token        string `yaml:"token"`
	BaseURL      string `yaml:"base_url"`
	Timeout      string `yaml:"timeout"`
	MaxFiles     int    `yaml:"max_files"`
	BatchSize    int    `yaml:"batch_size"`
	MaxFileBytes int    `yaml:"max_file_bytes"`
	ChunkSize    int    `yaml:"chunk_size"`
}

// TraceConfig configures the collision auditor.
type TraceConfig struct {
	Enabled     bool `yaml:"enabled"`
	CodeK       int  `yaml:"code_k"`
	DocK        int  `yaml:"doc_k"`
	MaxEntities int  `yaml:"max_entities"`
}

// MissionConfig configures plan generation.
type MissionConfig struct {
	GenerationTimeout string `yaml:"generation_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "machgate",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider:    "genai",
			Model:       "gemini-2.5-flash",
			Temperature: 0.2,
		},

		Embedding: EmbeddingConfig{
			Provider:   "genai",
			Model:      "gemini-embedding-001",
			Dimensions: 768,
			TaskType:   "RETRIEVAL_DOCUMENT",
		},

		Store: StoreConfig{
			DatabasePath: ".machgate/machgate.db",
			SearchK:      6,
		},

		GitHub: GitHubConfig{
			BaseURL:      "https://api.github.com",
			Timeout:      "30s",
			MaxFiles:     50,
			BatchSize:    5,
			MaxFileBytes: 100 * 1024,
			ChunkSize:    2000,
		},

		Trace: TraceConfig{
			Enabled:     true,
			CodeK:       3,
			DocK:        3,
			MaxEntities: 10,
		},

		Mission: MissionConfig{
			GenerationTimeout: "5m",
		},

		Entropy: entropy.DefaultParams(),

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// GEMINI_API_KEY wins over GOOGLE_API_KEY, matching the genai SDK
	for _, name := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			c.LLM.APIKey = key
			c.Embedding.APIKey = key
		}
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if c.LLM.Provider == "ollama" {
			c.LLM.BaseURL = host
		}
		if c.Embedding.Provider == "ollama" {
			c.Embedding.BaseURL = host
		}
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		c.GitHub.Token = token
	}

	if path := os.Getenv("MACHGATE_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// GetGitHubTimeout returns the repository API timeout as a duration.
func (c *Config) GetGitHubTimeout() time.Duration {
	return parseDuration(c.GitHub.Timeout, 30*time.Second)
}

// GetGenerationTimeout returns the plan generation timeout as a duration.
func (c *Config) GetGenerationTimeout() time.Duration {
	return parseDuration(c.Mission.GenerationTimeout, 5*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ValidLLMProviders lists all supported oracle providers.
var ValidLLMProviders = []string{"genai", "ollama"}

// ValidEmbeddingProviders lists all supported embedding providers.
var ValidEmbeddingProviders = []string{"genai", "ollama", "hash"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidLLMProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidLLMProviders)
	}
	if c.LLM.Provider == "genai" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or GOOGLE_API_KEY)")
	}

	if !contains(ValidEmbeddingProviders, c.Embedding.Provider) {
		return fmt.Errorf("invalid embedding provider: %s (valid: %v)", c.Embedding.Provider, ValidEmbeddingProviders)
	}
	if c.Embedding.Provider == "genai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding API key not configured (set GEMINI_API_KEY or GOOGLE_API_KEY)")
	}

	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is required")
	}
	if c.GitHub.BatchSize <= 0 || c.GitHub.MaxFiles <= 0 || c.GitHub.ChunkSize <= 0 {
		return fmt.Errorf("github batch_size, max_files and chunk_size must be positive")
	}
	if c.Trace.CodeK < 0 || c.Trace.DocK < 0 {
		return fmt.Errorf("trace code_k and doc_k must not be negative")
	}

	t := c.Entropy.Tiers
	if t != (entropy.Tiers{}) && !(t.Mach1 < t.Laminar && t.Laminar < t.Turbulent) {
		return fmt.Errorf("entropy tiers must be strictly increasing, got %d/%d/%d", t.Mach1, t.Laminar, t.Turbulent)
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
