// Package config handles configuration loading for orchid.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for orchid.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Model     ModelConfig     `mapstructure:"model"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Cost      CostConfig      `mapstructure:"cost"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// ModelConfig holds model selection and Bedrock settings.
type ModelConfig struct {
	Name          string `mapstructure:"name"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// PlannerConfig holds plan-generation settings.
type PlannerConfig struct {
	// Timeout bounds the model-assisted planning call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LimitsConfig holds task-tree limits.
type LimitsConfig struct {
	// MaxSubtasksPerParent caps non-cancelled children per parent.
	MaxSubtasksPerParent int `mapstructure:"max_subtasks_per_parent"`
	// ListDefault caps list_tasks results when no limit is given.
	ListDefault int `mapstructure:"list_default"`
}

// CostConfig holds the estimate_cost token and pricing tables.
type CostConfig struct {
	// TokensByRole maps agent roles to default token estimates.
	TokensByRole map[string]int `mapstructure:"tokens_by_role"`
	// DefaultTokens applies to roles without an entry.
	DefaultTokens int `mapstructure:"default_tokens"`
	// RatesPer1K maps model names to cents per 1K tokens.
	RatesPer1K map[string]float64 `mapstructure:"rates_per_1k"`
	// DefaultModel names the rate to use for unknown models.
	DefaultModel string `mapstructure:"default_model"`
}

// Load loads configuration with the following precedence, highest first:
// environment variables (ANTHROPIC_API_KEY), project config (.orchid.yaml
// in the current directory or a parent), user config
// (~/.config/orchid/config.yaml), built-in defaults.
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

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("model.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
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
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")

	v.SetDefault("model.name", "claude-sonnet-4-5")
	v.SetDefault("model.use_aws_bedrock", false)
	v.SetDefault("model.aws_region", "")
	v.SetDefault("model.aws_profile", "")

	v.SetDefault("planner.timeout", "60s")

	v.SetDefault("limits.max_subtasks_per_parent", 10)
	v.SetDefault("limits.list_default", 20)

	v.SetDefault("cost.tokens_by_role", map[string]int{
		"researcher":     12000,
		"content-writer": 8000,
		"designer":       3000,
		"forge":          15000,
		"orchestrator":   5000,
	})
	v.SetDefault("cost.default_tokens", 6000)
	v.SetDefault("cost.rates_per_1k", map[string]float64{
		"claude-sonnet-4-5": 0.9,
		"claude-haiku-4-5":  0.3,
		"claude-opus-4-1":   4.5,
	})
	v.SetDefault("cost.default_model", "claude-sonnet-4-5")
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "orchid")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "orchid")
	}
	return filepath.Join(home, ".config", "orchid")
}

// findProjectConfig searches for .orchid.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".orchid.yaml")
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
