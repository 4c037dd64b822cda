package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	StorageDir string           `mapstructure:"storage_dir" json:"storage_dir"`
	Timezone   string           `mapstructure:"timezone" json:"timezone"`
	Index      IndexConfig      `mapstructure:"index" json:"index"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings" json:"embeddings"`
	Search     SearchConfig     `mapstructure:"search" json:"search"`
}

type IndexConfig struct {
	// Backend selects the vector index adapter: chromem (default) or sqlite.
	Backend    string `mapstructure:"backend" json:"backend"`
	Collection string `mapstructure:"collection" json:"collection"`
}

type EmbeddingsConfig struct {
	// Provider selects the embedding provider: static (default) or openai.
	Provider    string `mapstructure:"provider" json:"provider"`
	APIKey      string `mapstructure:"api_key" json:"api_key,omitempty"`
	BaseURL     string `mapstructure:"base_url" json:"base_url"`
	Model       string `mapstructure:"model" json:"model"`
	Dimensions  int    `mapstructure:"dimensions" json:"dimensions"`
	WeightsPath string `mapstructure:"weights_path" json:"weights_path"`
}

type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit" json:"default_limit"`
}

func Load(override string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	appDir := filepath.Join(home, ".mnemo")
	if _, err := os.Stat(appDir); os.IsNotExist(err) {
		_ = os.MkdirAll(appDir, 0755)
	}

	// Environment overrides
	if envDir := os.Getenv("MNEMO_STORAGE_DIR"); envDir != "" {
		appDir = envDir
		_ = os.MkdirAll(appDir, 0755)
	}

	viper.SetDefault("index.backend", "chromem")
	viper.SetDefault("index.collection", "memories")
	viper.SetDefault("embeddings.provider", "static")
	viper.SetDefault("embeddings.dimensions", 256)
	viper.SetDefault("search.default_limit", 10)

	if override != "" {
		viper.AddConfigPath(".")
		viper.SetConfigFile(override)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appDir)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Running without a config file is fine; everything has a default.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.StorageDir == "" {
		cfg.StorageDir = appDir
	}
	if strings.HasPrefix(cfg.StorageDir, "~/") {
		cfg.StorageDir = filepath.Join(home, cfg.StorageDir[2:])
	}

	// Resolve API key from an inline placeholder ($VAR) or the default
	// environment variable.
	apiKey := cfg.Embeddings.APIKey
	if strings.HasPrefix(apiKey, "$") {
		apiKey = os.Getenv(strings.TrimPrefix(apiKey, "$"))
	} else if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.Embeddings.APIKey = apiKey

	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	return &cfg, nil
}

// Location resolves the configured timezone; empty means the system's
// local timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
