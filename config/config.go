// Package config loads the host and worker configuration: which LLM
// provider to use, which workers to spawn, and which of their tools a
// toolset exposes to the model.
package config

import (
	"os"
	"path/filepath"

	"github.com/toolwire/toolwire/errors"
	"gopkg.in/yaml.v3"
)

// FilesystemAccess restricts the worker's file tools, as doublestar
// glob patterns.
type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

// Worker declares one tool worker to spawn. The launch runtime is
// derived from the script's file extension; Args are forwarded after
// the script path.
type Worker struct {
	Name   string   `yaml:"name"`
	Script string   `yaml:"script"`
	Args   []string `yaml:"args"`
}

// Toolset selects which tools the model sees. Entries are glob
// patterns matched against both the bare tool name and the
// worker-qualified form "<worker>.<tool>"; "*" exposes everything.
type Toolset struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

type Config struct {
	LLMClient        string           `yaml:"llm"`
	Model            string           `yaml:"model"`
	MaxToolRounds    int              `yaml:"max_tool_rounds"`
	Workers          []Worker         `yaml:"workers"`
	Toolsets         []Toolset        `yaml:"toolsets"`
	AllowedCommands  []string         `yaml:"allowed_commands"`
	FilesystemAccess FilesystemAccess `yaml:"filesystem_access"`
}

// LoadConfig loads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// Session state under .toolwire is never exposed to tools.
	cfg.FilesystemAccess.Hidden = append(cfg.FilesystemAccess.Hidden, ".toolwire", ".toolwire/**")

	// Load user-level config first
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".toolwire", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	// Load project-level config, overriding user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".toolwire", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	if cfg.MaxToolRounds <= 0 {
		// One round of tool calls per user query, then synthesis.
		cfg.MaxToolRounds = 1
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Note: Unmarshal will overwrite fields present in the YAML. This provides
	// a simple merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

// GetToolset finds a toolset by name. Returns the "default" toolset if the
// named one is not found or if an empty name is provided; a missing
// "default" exposes every tool.
func (c *Config) GetToolset(name string) *Toolset {
	if name == "" {
		name = "default"
	}
	for _, ts := range c.Toolsets {
		if ts.Name == name {
			return &ts
		}
	}
	if name == "default" {
		return &Toolset{Name: "default", Tools: []string{"*"}}
	}
	return c.GetToolset("default")
}
