package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbhooper/foreman/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify foreman configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/foreman/config.yaml
Project-specific overrides can be placed in .foreman.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("agent.command: %s\n", cfg.Agent.Command)
	fmt.Printf("agent.extra_args: %s\n", strings.Join(cfg.Agent.ExtraArgs, " "))
	fmt.Printf("orchestrator.max_workers: %d\n", cfg.Orchestrator.MaxWorkers)
	fmt.Printf("orchestrator.mainline: %s\n", cfg.Orchestrator.Mainline)
	fmt.Printf("timeouts.git: %s\n", cfg.Timeouts.Git)
	fmt.Printf("timeouts.coordinator: %s\n", cfg.Timeouts.Coordinator)
	fmt.Printf("timeouts.worker: %s\n", cfg.Timeouts.Worker)
	fmt.Printf("timeouts.merger: %s\n", cfg.Timeouts.Merger)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dotted key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "agent.command":
		return cfg.Agent.Command, nil
	case "agent.extra_args":
		return strings.Join(cfg.Agent.ExtraArgs, " "), nil
	case "orchestrator.max_workers":
		return strconv.Itoa(cfg.Orchestrator.MaxWorkers), nil
	case "orchestrator.mainline":
		return cfg.Orchestrator.Mainline, nil
	case "timeouts.git":
		return cfg.Timeouts.Git.String(), nil
	case "timeouts.coordinator":
		return cfg.Timeouts.Coordinator.String(), nil
	case "timeouts.worker":
		return cfg.Timeouts.Worker.String(), nil
	case "timeouts.merger":
		return cfg.Timeouts.Merger.String(), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// setConfigValue modifies a configuration value by dotted key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "agent.command":
		cfg.Agent.Command = value
	case "agent.extra_args":
		cfg.Agent.ExtraArgs = strings.Fields(value)
	case "orchestrator.max_workers":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("max_workers must be a non-negative integer: %s", value)
		}
		cfg.Orchestrator.MaxWorkers = n
	case "orchestrator.mainline":
		if value == "" {
			return fmt.Errorf("mainline cannot be empty")
		}
		cfg.Orchestrator.Mainline = value
	case "timeouts.git":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("timeouts.git must be a positive duration: %s", value)
		}
		cfg.Timeouts.Git = d
	case "timeouts.coordinator", "timeouts.worker", "timeouts.merger":
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return fmt.Errorf("%s must be a duration (0 disables the limit): %s", key, value)
		}
		switch key {
		case "timeouts.coordinator":
			cfg.Timeouts.Coordinator = d
		case "timeouts.worker":
			cfg.Timeouts.Worker = d
		case "timeouts.merger":
			cfg.Timeouts.Merger = d
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
