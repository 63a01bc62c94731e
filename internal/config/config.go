// Package config handles configuration loading for foreman. It supports
// XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for foreman.
type Config struct {
	Agent        AgentConfig        `mapstructure:"agent"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Timeouts     TimeoutsConfig     `mapstructure:"timeouts"`
}

// AgentConfig holds settings for spawning agent processes.
type AgentConfig struct {
	// Command is the agent CLI binary.
	Command string `mapstructure:"command"`
	// ExtraArgs are passed to every agent invocation before the prompt.
	ExtraArgs []string `mapstructure:"extra_args"`
}

// OrchestratorConfig holds workflow settings.
type OrchestratorConfig struct {
	// MaxWorkers caps concurrently running workers. 0 means unlimited.
	MaxWorkers int `mapstructure:"max_workers"`
	// Mainline is the integration branch.
	Mainline string `mapstructure:"mainline"`
}

// TimeoutsConfig holds timeout settings.
type TimeoutsConfig struct {
	// Git bounds every git subprocess invocation.
	Git time.Duration `mapstructure:"git"`
	// Coordinator bounds the planning phase. 0 disables the limit.
	Coordinator time.Duration `mapstructure:"coordinator"`
	// Worker bounds one task's execution. 0 disables the limit.
	Worker time.Duration `mapstructure:"worker"`
	// Merger bounds one branch integration. 0 disables the limit.
	Merger time.Duration `mapstructure:"merger"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (FOREMAN_*)
// 2. Project config (.foreman.yaml in current directory or parent)
// 3. User config (~/.config/foreman/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FOREMAN")
	v.AutomaticEnv()
	v.BindEnv("agent.command", "FOREMAN_AGENT_COMMAND")
	v.BindEnv("orchestrator.max_workers", "FOREMAN_MAX_WORKERS")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("agent.command", cfg.Agent.Command)
	v.Set("agent.extra_args", cfg.Agent.ExtraArgs)
	v.Set("orchestrator.max_workers", cfg.Orchestrator.MaxWorkers)
	v.Set("orchestrator.mainline", cfg.Orchestrator.Mainline)
	v.Set("timeouts.git", cfg.Timeouts.Git.String())
	v.Set("timeouts.coordinator", cfg.Timeouts.Coordinator.String())
	v.Set("timeouts.worker", cfg.Timeouts.Worker.String())
	v.Set("timeouts.merger", cfg.Timeouts.Merger.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Command:   "claude",
			ExtraArgs: []string{"--print"},
		},
		Orchestrator: OrchestratorConfig{
			MaxWorkers: 0,
			Mainline:   "main",
		},
		Timeouts: TimeoutsConfig{
			Git:         30 * time.Second,
			Coordinator: 10 * time.Minute,
			Worker:      30 * time.Minute,
			Merger:      10 * time.Minute,
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.command", "claude")
	v.SetDefault("agent.extra_args", []string{"--print"})

	v.SetDefault("orchestrator.max_workers", 0)
	v.SetDefault("orchestrator.mainline", "main")

	v.SetDefault("timeouts.git", "30s")
	v.SetDefault("timeouts.coordinator", "10m")
	v.SetDefault("timeouts.worker", "30m")
	v.SetDefault("timeouts.merger", "10m")
}

// getUserConfigDir returns the XDG config directory for foreman.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "foreman")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "foreman")
	}
	return filepath.Join(home, ".config", "foreman")
}

// findProjectConfig searches for .foreman.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".foreman.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
