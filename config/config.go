// Package config loads the enclave configuration: struct defaults, then an
// optional YAML file, then ENCLAVE_-prefixed environment variables, each
// layer overriding the previous one.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides, e.g. ENCLAVE_MODEL_PROVIDER.
const EnvPrefix = "ENCLAVE_"

// Config is the full runtime configuration.
type Config struct {
	Model   ModelConfig   `koanf:"model"`
	Paths   PathsConfig   `koanf:"paths"`
	Server  ServerConfig  `koanf:"server"`
	Jobs    JobsConfig    `koanf:"jobs"`
	Queue   QueueConfig   `koanf:"queue"`
	Logging LoggingConfig `koanf:"logging"`
}

// ModelConfig selects and tunes the completion backend.
type ModelConfig struct {
	// Provider is one of "ollama", "openai", "anthropic".
	Provider    string  `koanf:"provider"`
	ID          string  `koanf:"id"`
	Instruction string  `koanf:"instruction"`
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
	OllamaURL   string  `koanf:"ollama_url"`
}

// PathsConfig locates the core's durable files.
type PathsConfig struct {
	LogDir    string `koanf:"log_dir"`
	StateFile string `koanf:"state_file"`
	Keystore  string `koanf:"keystore"`
	KeysDir   string `koanf:"keys_dir"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// JobsConfig configures recurring background work.
type JobsConfig struct {
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
}

// QueueConfig sizes the task queue worker pool.
type QueueConfig struct {
	Workers int `koanf:"workers"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// Backend selects the logger implementation: "slog" or "zap".
	Backend string `koanf:"backend"`
}

// Default returns the baseline configuration all layers start from.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "ollama",
			ID:          "tinydolphin:1.1b",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Paths: PathsConfig{
			LogDir:    "logs",
			StateFile: "memory/memory.json",
			Keystore:  "data/api_keys.enc",
			KeysDir:   "data/keys",
		},
		Server: ServerConfig{Addr: ":8080"},
		Jobs:   JobsConfig{HeartbeatInterval: 5 * time.Second},
		Queue:  QueueConfig{Workers: 3},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "json",
			Backend: "slog",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path (skipped when path is empty or the file does not exist), and the
// process environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	// ENCLAVE_MODEL_MAX_TOKENS -> model.max_tokens. Section names contain no
	// underscores, so only the first one becomes a dot.
	if err := k.Load(env.Provider(EnvPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func transformEnv(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate rejects configurations the core cannot start with.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("config: unknown model provider %q", c.Model.Provider)
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("config: model.max_tokens must be positive")
	}
	if c.Jobs.HeartbeatInterval <= 0 {
		return fmt.Errorf("config: jobs.heartbeat_interval must be positive")
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("config: queue.workers must be positive")
	}
	switch c.Logging.Backend {
	case "slog", "zap":
	default:
		return fmt.Errorf("config: unknown logging backend %q", c.Logging.Backend)
	}
	return nil
}
