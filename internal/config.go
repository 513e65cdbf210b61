package internal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type StoreConfig struct {
	// Backend is "memory" or "badger".
	Backend string `yaml:"backend"`
	// Path holds the badger database, relative to the repository directory.
	Path string `yaml:"path,omitempty"`
}

type MergeConfig struct {
	Strategy MergeStrategy `yaml:"strategy,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

type Config struct {
	Author          string                    `yaml:"author,omitempty"`
	DefaultBranch   string                    `yaml:"default_branch,omitempty"`
	Store           StoreConfig               `yaml:"store"`
	Merge           MergeConfig               `yaml:"merge,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Author:        DefaultAuthor,
		DefaultBranch: DefaultBranch,
		Store: StoreConfig{
			Backend: "badger",
			Path:    "store",
		},
		Merge:     MergeConfig{Strategy: Manual},
		Providers: make(map[string]ProviderConfig),
	}
}

func LoadConfig(scope Scope) (*Config, error) {
	path := scope.ConfigPath()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if cfg.Merge.Strategy != "" && !cfg.Merge.Strategy.Valid() {
		return nil, fmt.Errorf("unknown merge strategy %q in config", cfg.Merge.Strategy)
	}

	return cfg, nil
}

func SaveConfig(scope Scope, cfg *Config) error {
	path := scope.ConfigPath()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
