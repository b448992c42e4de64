package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Remote     RemoteConfig     `yaml:"remote" mapstructure:"remote"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Heuristics HeuristicsConfig `yaml:"heuristics" mapstructure:"heuristics"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RemoteConfig points at the read-only remote catalogue the bootstrap
// command copies from.
type RemoteConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	Limit       int    `yaml:"limit" mapstructure:"limit"`
}

// MatchConfig tunes the heuristic matcher.
type MatchConfig struct {
	// SimilarityThreshold is the minimum normalized similarity for the
	// fuzzy strategy to accept a roster match.
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	// RulesPath optionally points at a YAML file overriding the embedded
	// faculty/department keyword tables and marker list.
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// HeuristicsConfig tunes the heuristic stage runner.
type HeuristicsConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// LLMConfig configures the disambiguation stage and its provider.
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`

	// AcceptanceThreshold: validated results below it are persisted but
	// do not overwrite heuristic faculty/OU guesses.
	AcceptanceThreshold float64 `yaml:"acceptance_threshold" mapstructure:"acceptance_threshold"`

	BatchSize   int `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`

	// RatePerSec caps provider calls per second across workers.
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`

	// RosterSlice bounds how many roster names the prompt embeds.
	RosterSlice int `yaml:"roster_slice" mapstructure:"roster_slice"`

	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ollama    OllamaConfig    `yaml:"ollama" mapstructure:"ollama"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
}

// Timeout returns the per-call timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OllamaConfig holds local Ollama endpoint settings.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds settings for OpenAI-compatible endpoints.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
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
	v.SetEnvPrefix("AFFIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("remote.database_url", "")
	v.SetDefault("remote.table", "publication_metadata")
	v.SetDefault("remote.batch_size", 500)
	v.SetDefault("remote.limit", 0)
	v.SetDefault("match.similarity_threshold", 0.85)
	v.SetDefault("match.rules_path", "")
	v.SetDefault("heuristics.batch_size", 200)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.acceptance_threshold", 0.5)
	v.SetDefault("llm.batch_size", 20)
	v.SetDefault("llm.concurrency", 4)
	v.SetDefault("llm.timeout_secs", 60)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.rate_per_sec", 2.0)
	v.SetDefault("llm.roster_slice", 40)
	v.SetDefault("llm.anthropic.key", "")
	v.SetDefault("llm.anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.ollama.base_url", "http://localhost:11434")
	v.SetDefault("llm.ollama.model", "llama3.1")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.openai.key", "")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")

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
