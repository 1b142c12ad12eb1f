// Package config holds all voltlab configuration: generator provider,
// pipeline behavior, issue log storage, and logging. Configuration is a YAML
// file with environment-variable overrides on top; a missing file yields the
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all voltlab configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Generator (LLM) configuration
	LLM LLMConfig `yaml:"llm"`

	// Pipeline behavior
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Issue log storage
	Issues IssuesConfig `yaml:"issues"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the code generator provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, deepseek, ollama, ollama-cloud
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// PipelineConfig configures the repair/execute pipeline.
type PipelineConfig struct {
	// ConvertConstantSources enables rewriting constant voltage sources to
	// stepped sources when a transient analysis is requested.
	ConvertConstantSources bool `yaml:"convert_constant_sources"`

	// ExecutionTimeout bounds one sandboxed run.
	ExecutionTimeout string `yaml:"execution_timeout"`
}

// IssuesConfig configures the persisted issue log.
type IssuesConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`   // empty logs to stderr only
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "voltlab",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  "120s",
		},

		Pipeline: PipelineConfig{
			ConvertConstantSources: true,
			ExecutionTimeout:       "30s",
		},

		Issues: IssuesConfig{
			DatabasePath: filepath.Join(".voltlab", "issues.db"),
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() string {
	return filepath.Join(".voltlab", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file is not an
// error; defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
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

func (c *Config) applyEnvOverrides() {
	// API keys in priority order; the last present one wins along with its
	// provider.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "deepseek"
	}
	if key := os.Getenv("OLLAMA_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "ollama-cloud"
	}

	if url := os.Getenv("VOLTLAB_LLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("VOLTLAB_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("VOLTLAB_ISSUES_DB"); path != "" {
		c.Issues.DatabasePath = path
	}
	if v := os.Getenv("VOLTLAB_CONVERT_CONSTANT_SOURCES"); v != "" {
		c.Pipeline.ConvertConstantSources = v == "1" || v == "true"
	}
}

// GetLLMTimeout returns the generator timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetExecutionTimeout returns the sandbox timeout as a duration.
func (c *Config) GetExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.ExecutionTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidProviders lists all supported generator providers.
var ValidProviders = []string{"openai", "deepseek", "ollama", "ollama-cloud"}

// Validate checks the configuration for a runnable generator setup. The
// local ollama provider needs no key.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if c.LLM.APIKey == "" && c.LLM.Provider != "ollama" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY, DEEPSEEK_API_KEY, or OLLAMA_API_KEY)")
	}
	return nil
}
