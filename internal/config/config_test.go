package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Agent.Command != "claude" {
		t.Errorf("expected default agent command 'claude', got %q", cfg.Agent.Command)
	}

	if len(cfg.Agent.ExtraArgs) != 1 || cfg.Agent.ExtraArgs[0] != "--print" {
		t.Errorf("expected default extra args [--print], got %v", cfg.Agent.ExtraArgs)
	}

	if cfg.Orchestrator.MaxWorkers != 0 {
		t.Errorf("expected unbounded workers by default, got %d", cfg.Orchestrator.MaxWorkers)
	}

	if cfg.Orchestrator.Mainline != "main" {
		t.Errorf("expected default mainline 'main', got %q", cfg.Orchestrator.Mainline)
	}

	if cfg.Timeouts.Git != 30*time.Second {
		t.Errorf("expected git timeout 30s, got %v", cfg.Timeouts.Git)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
agent:
  command: my-agent
  extra_args: ["--quiet", "--json"]
orchestrator:
  max_workers: 2
  mainline: trunk
timeouts:
  git: 1m
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Agent.Command != "my-agent" {
		t.Errorf("expected agent command 'my-agent', got %q", cfg.Agent.Command)
	}

	if len(cfg.Agent.ExtraArgs) != 2 {
		t.Errorf("expected 2 extra args, got %v", cfg.Agent.ExtraArgs)
	}

	if cfg.Orchestrator.MaxWorkers != 2 {
		t.Errorf("expected max workers 2, got %d", cfg.Orchestrator.MaxWorkers)
	}

	if cfg.Orchestrator.Mainline != "trunk" {
		t.Errorf("expected mainline 'trunk', got %q", cfg.Orchestrator.Mainline)
	}

	if cfg.Timeouts.Git != time.Minute {
		t.Errorf("expected git timeout 1m, got %v", cfg.Timeouts.Git)
	}
}

func TestLoadFromPathPartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
orchestrator:
  max_workers: 8
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Orchestrator.MaxWorkers != 8 {
		t.Errorf("expected max workers 8, got %d", cfg.Orchestrator.MaxWorkers)
	}

	// Unset keys keep their defaults.
	if cfg.Agent.Command != "claude" {
		t.Errorf("expected default agent command to survive, got %q", cfg.Agent.Command)
	}

	if cfg.Timeouts.Git != 30*time.Second {
		t.Errorf("expected default git timeout to survive, got %v", cfg.Timeouts.Git)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Agent.Command = "other-agent"
	cfg.Orchestrator.MaxWorkers = 6

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if loaded.Agent.Command != "other-agent" {
		t.Errorf("expected saved agent command 'other-agent', got %q", loaded.Agent.Command)
	}

	if loaded.Orchestrator.MaxWorkers != 6 {
		t.Errorf("expected saved max workers 6, got %d", loaded.Orchestrator.MaxWorkers)
	}
}
