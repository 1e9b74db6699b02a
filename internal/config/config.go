package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models talentworth.yml.
type Config struct {
	Server struct {
		Addr          string `yaml:"addr"`
		BasePath      string `yaml:"base_path"`
		AllowedOrigin string `yaml:"allowed_origin"`
	} `yaml:"server"`
	Model Model `yaml:"model"`
	Log   struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Model configures the external language-model endpoint.
type Model struct {
	Endpoint       string  `yaml:"endpoint"`
	Name           string  `yaml:"name"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxAttempts    int     `yaml:"max_attempts"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Model.Endpoint == "" {
		return fmt.Errorf("config.model.endpoint is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("config.model.name is required")
	}
	if c.Model.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.model.timeout_seconds must be positive")
	}
	if c.Model.MaxAttempts < 1 {
		return fmt.Errorf("config.model.max_attempts must be at least 1")
	}
	return nil
}

// APIKey resolves the model API key from the configured env var.
func (m Model) APIKey() string {
	env := m.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return os.Getenv(env)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "talentworth.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v0
  allowed_origin: http://localhost:5173

model:
  endpoint: https://api.openai.com/v1/chat/completions
  name: gpt-4.1-mini
  api_key_env: OPENAI_API_KEY
  max_tokens: 1000
  temperature: 0.3
  timeout_seconds: 30
  max_attempts: 2

log:
  file: ""
  level: INFO
`
