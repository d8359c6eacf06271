package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type StoreConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type SyncConfig struct {
	Provider  string `toml:"provider"`
	Direction string `toml:"direction"`
}

type DedupeConfig struct {
	Threshold    int    `toml:"threshold"`
	LLMThreshold int    `toml:"llm_threshold"`
	EnableLLM    bool   `toml:"enable_llm"`
	Model        string `toml:"model"`
	MaxRetries   int    `toml:"max_retries"`
	RetryDelayMs int    `toml:"retry_delay_ms"`
}

type ConflictConfig struct {
	Strategy        string `toml:"strategy"`
	AutoMerge       bool   `toml:"auto_merge"`
	PreferredSource string `toml:"preferred_source"`
}

type BufferConfig struct {
	Workers      int `toml:"workers"`
	MaxRetries   int `toml:"max_retries"`
	RetryDelayMs int `toml:"retry_delay_ms"`
}

type ConcurrencyConfig struct {
	SyncWrites int `toml:"sync_writes"`
}

type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Store       StoreConfig       `toml:"store"`
	Sync        SyncConfig        `toml:"sync"`
	Dedupe      DedupeConfig      `toml:"dedupe"`
	Conflict    ConflictConfig    `toml:"conflict"`
	Buffer      BufferConfig      `toml:"buffer"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			Provider:  "memory",
			Direction: "both",
		},
		Dedupe: DedupeConfig{
			Threshold:    90,
			LLMThreshold: 60,
			EnableLLM:    true,
			Model:        "gpt-4o-mini",
			MaxRetries:   3,
			RetryDelayMs: 500,
		},
		Conflict: ConflictConfig{
			Strategy:  "newest",
			AutoMerge: true,
		},
		Buffer: BufferConfig{
			Workers:      2,
			MaxRetries:   3,
			RetryDelayMs: 1000,
		},
		Concurrency: ConcurrencyConfig{
			SyncWrites: 4,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}
