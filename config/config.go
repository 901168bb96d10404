// Package config loads application settings from a JSON or YAML file,
// with DIALOGDOC_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"

	"auto_dialogue_document/pipeline"
)

const (
	DefaultPath = "config/config.json"
	EnvPrefix   = "DIALOGDOC"
)

type Config struct {
	ServerAddr string        `mapstructure:"server_addr"`
	Verbose    bool          `mapstructure:"verbose"`
	RulesPath  string        `mapstructure:"rules_path"`
	LLM        LLMConfig     `mapstructure:"llm"`
	Gate       GateConfig    `mapstructure:"gate"`
	Chart      ChartConfig   `mapstructure:"chart"`
	Session    SessionConfig `mapstructure:"session"`
}

// LLMConfig selects the drafting model. APIKeyEnv names an environment
// variable to read the key from when APIKey is empty.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	APIKeyEnv   string  `mapstructure:"api_key_env"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

type GateConfig struct {
	MinDepth       int `mapstructure:"min_depth"`
	CooldownRounds int `mapstructure:"cooldown_rounds"`
}

type ChartConfig struct {
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	Workers   int    `mapstructure:"workers"`
	OnFailure string `mapstructure:"on_failure"`
}

type SessionConfig struct {
	Backend  string `mapstructure:"backend"`
	RedisURL string `mapstructure:"redis_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("verbose", false)
	v.SetDefault("rules_path", "")
	v.SetDefault("llm.provider", "mock")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.api_key_env", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("gate.min_depth", 3)
	v.SetDefault("gate.cooldown_rounds", 5)
	v.SetDefault("chart.width", 1000)
	v.SetDefault("chart.height", 600)
	v.SetDefault("chart.workers", 0)
	v.SetDefault("chart.on_failure", string(pipeline.PolicyAbort))
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.redis_url", "redis://localhost:6379/0")
}

// Load reads path over the defaults. An empty path, or a missing file at
// DefaultPath, yields defaults plus environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.LLM.APIKey == "" && cfg.LLM.APIKeyEnv != "" {
		cfg.LLM.APIKey = os.Getenv(cfg.LLM.APIKeyEnv)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Gate.MinDepth < 1 {
		errs = append(errs, fmt.Errorf("gate.min_depth must be at least 1, got %d", c.Gate.MinDepth))
	}
	if c.Gate.CooldownRounds < 0 {
		errs = append(errs, fmt.Errorf("gate.cooldown_rounds must not be negative, got %d", c.Gate.CooldownRounds))
	}
	if c.Chart.Width < 320 || c.Chart.Height < 240 {
		errs = append(errs, fmt.Errorf("chart size %dx%d is below 320x240", c.Chart.Width, c.Chart.Height))
	}
	if c.Chart.Workers < 0 {
		errs = append(errs, errors.New("chart.workers must not be negative"))
	}
	if _, err := pipeline.ParseChartPolicy(c.Chart.OnFailure); err != nil {
		errs = append(errs, fmt.Errorf("chart.on_failure: %w", err))
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisURL == "" {
			errs = append(errs, errors.New("session.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend %q not supported (memory or redis)", c.Session.Backend))
	}
	switch c.LLM.Provider {
	case "mock", "openai", "deepseek":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q not supported", c.LLM.Provider))
	}
	return errors.Join(errs...)
}
