package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	OCR      OCRConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// LLMConfig holds provider settings. Provider is "ollama" or "openai"; both
// speak the OpenAI chat API.
type LLMConfig struct {
	Provider    string
	BaseURL     string `mapstructure:"base_url"`
	APIKeyEnv   string `mapstructure:"api_key_env"`
	APIKey      string `mapstructure:"api_key"`
	Model       string
	Timeout     time.Duration
	Temperature float32
}

// PipelineConfig tunes retries and enrichment. Oracle is "llm" or "heuristic".
type PipelineConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	EnrichWorkers int           `mapstructure:"enrich_workers"`
	EnrichRate    float64       `mapstructure:"enrich_rate"`
	Oracle        string
}

// OCRConfig selects the text source: "text" reads transcriptions, "tesseract"
// runs the binary.
type OCRConfig struct {
	Engine   string
	Language string
	Binary   string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig.Textfile, when set, receives a Prometheus textfile dump
// after each run.
type MetricsConfig struct {
	Textfile string
}

// Load reads configuration from file and env. Env var overrides use prefix PARAGONY_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "paragony", "paragony.db"))
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "SpeakLeash/bielik-11b-v2.3-instruct:Q6_K")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.retry_delay", 2*time.Second)
	v.SetDefault("pipeline.enrich_workers", 4)
	v.SetDefault("pipeline.enrich_rate", 0.0)
	v.SetDefault("pipeline.oracle", "llm")
	v.SetDefault("ocr.engine", "text")
	v.SetDefault("ocr.language", "pol")
	v.SetDefault("ocr.binary", "tesseract")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.textfile", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("PARAGONY_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "paragony"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PARAGONY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects values the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("config: unknown llm.provider %q", c.LLM.Provider)
	}
	switch c.Pipeline.Oracle {
	case "llm", "heuristic":
	default:
		return fmt.Errorf("config: unknown pipeline.oracle %q", c.Pipeline.Oracle)
	}
	switch c.OCR.Engine {
	case "text", "tesseract":
	default:
		return fmt.Errorf("config: unknown ocr.engine %q", c.OCR.Engine)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("config: pipeline.max_attempts must be at least 1, got %d", c.Pipeline.MaxAttempts)
	}
	return nil
}

// Save writes the provided config to disk, creating the config directory if needed.
// The API key is stored in plain text in the config file; prefer env vars.
func Save(cfg Config) error {
	path := os.Getenv("PARAGONY_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "paragony", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.base_url", cfg.LLM.BaseURL)
	v.Set("llm.api_key_env", cfg.LLM.APIKeyEnv)
	v.Set("llm.api_key", cfg.LLM.APIKey)
	v.Set("llm.model", cfg.LLM.Model)
	v.Set("llm.timeout", cfg.LLM.Timeout.String())
	v.Set("llm.temperature", cfg.LLM.Temperature)
	v.Set("pipeline.max_attempts", cfg.Pipeline.MaxAttempts)
	v.Set("pipeline.retry_delay", cfg.Pipeline.RetryDelay.String())
	v.Set("pipeline.enrich_workers", cfg.Pipeline.EnrichWorkers)
	v.Set("pipeline.enrich_rate", cfg.Pipeline.EnrichRate)
	v.Set("pipeline.oracle", cfg.Pipeline.Oracle)
	v.Set("ocr.engine", cfg.OCR.Engine)
	v.Set("ocr.language", cfg.OCR.Language)
	v.Set("ocr.binary", cfg.OCR.Binary)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("metrics.textfile", cfg.Metrics.Textfile)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
