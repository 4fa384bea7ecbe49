package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"prescreen/internal/domain"
)

// Config models prescreen.yml.
type Config struct {
	Backend struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"backend"`
	Process struct {
		Model  string `yaml:"model"`
		Source string `yaml:"source"`
	} `yaml:"process"`
	Server struct {
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
}

// Remote reports whether a hosted backend is configured; otherwise the local
// workspace store is used.
func (c *Config) Remote() bool {
	return c.Backend.BaseURL != ""
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Process.Model == "" {
		c.Process.Model = domain.ProcessModelPreScreening
	}
	if c.Process.Source == "" {
		c.Process.Source = "prescreen"
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/v0"
	}
	if c.Backend.BaseURL != "" && c.Backend.APIKey == "" {
		return fmt.Errorf("config.backend.api_key is required when backend.base_url is set")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "prescreen.yml")
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the defaults used when no config file exists.
func Default() *Config {
	var cfg Config
	_ = cfg.Validate()
	return &cfg
}

// GenerateDefault returns a starter config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `backend:
  # Leave base_url empty to use the local workspace store.
  base_url: ""
  api_key: ""

process:
  model: pre-screening
  source: prescreen

server:
  base_path: /v0
  jwt_secret: ""
`
