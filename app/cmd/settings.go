package cmd

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the file-backed runtime configuration. Every field has a working
// default so a missing config file is not an error.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	LLM struct {
		Endpoint string `yaml:"endpoint"`
		Model    string `yaml:"model"`
	} `yaml:"llm"`
	Engine struct {
		MaxSteps int    `yaml:"max_steps"`
		Persona  string `yaml:"persona"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"engine"`
	Workspace struct {
		ID string `yaml:"id"`
	} `yaml:"workspace"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Database.Path = "adpilot.db"
	cfg.LLM.Endpoint = "http://localhost:11434"
	cfg.LLM.Model = "llama3.1"
	cfg.Engine.MaxSteps = 6
	cfg.Engine.Persona = "general"
	cfg.Workspace.ID = "ws-default"
	return cfg
}

// DefaultConfigPath resolves the config location: $ADPILOT_CONFIG, else
// adpilot.yaml in the working directory.
func DefaultConfigPath() string {
	if path := os.Getenv("ADPILOT_CONFIG"); path != "" {
		return path
	}
	wd, _ := os.Getwd()
	return filepath.Join(wd, "adpilot.yaml")
}

// LoadConfig reads the YAML config and overlays it on the defaults. A missing
// file returns the defaults together with os.ErrNotExist so callers can treat
// it as soft.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Engine.MaxSteps <= 0 {
		cfg.Engine.MaxSteps = 6
	}
	return cfg, nil
}

// SaveConfig writes the config back to disk, creating directories.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
