// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Materials  MaterialsConfig  `yaml:"materials" mapstructure:"materials"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings for the vision and primary
// text analyzers.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	VisionModel string `yaml:"vision_model" mapstructure:"vision_model"`
	TextModel   string `yaml:"text_model" mapstructure:"text_model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PerplexityConfig holds settings for the secondary text analyzer.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// MaterialsConfig holds supplier catalog API settings.
type MaterialsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CacheConfig configures the result cache backend.
type CacheConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "memory"
	Path     string `yaml:"path" mapstructure:"path"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// PipelineConfig configures stage execution.
type PipelineConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	ImageBatchSize   int `yaml:"image_batch_size" mapstructure:"image_batch_size"`
	BatchPauseMillis int `yaml:"batch_pause_ms" mapstructure:"batch_pause_ms"`
	NotesMaxChars    int `yaml:"notes_max_chars" mapstructure:"notes_max_chars"`
}

// ServerConfig configures the HTTP serve surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credential keys get empty defaults so env-only values
	// survive Unmarshal.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("materials.key", "")
	v.SetDefault("anthropic.vision_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.text_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("materials.base_url", "https://api.supplybridge.io/v1")
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "intake-cache.db")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.image_batch_size", 3)
	v.SetDefault("pipeline.batch_pause_ms", 1000)
	v.SetDefault("pipeline.notes_max_chars", 8000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the credentials required to run analyses are present.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic key is required (INTAKE_ANTHROPIC_KEY)")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
