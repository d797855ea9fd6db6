// Package config loads the YAML (or JSON) configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	LLM        LLMConfig     `yaml:"llm"`
	Chain      ChainConfig   `yaml:"chain"`
	Dataset    DatasetConfig `yaml:"dataset"`
	Output     OutputConfig  `yaml:"output"`
	ServerAddr string        `yaml:"server_addr,omitempty"`
	LogLevel   string        `yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
}

// LLMConfig selects and configures the text-generation provider.
type LLMConfig struct {
	Provider       string   `yaml:"provider" validate:"required,oneof=openai deepseek azure ollama mock"`
	Model          string   `yaml:"model" validate:"required_unless=Provider mock"`
	APIKey         string   `yaml:"api_key,omitempty"`
	APIKeyEnv      string   `yaml:"api_key_env,omitempty"`
	BaseURL        string   `yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIVersion     string   `yaml:"api_version,omitempty"`
	ResponseFormat string   `yaml:"response_format,omitempty" validate:"omitempty,oneof=json_schema json_object"`
	MaxTokens      int      `yaml:"max_tokens,omitempty" validate:"gte=0"`
	Temperature    *float64 `yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	// RequestsPerMinute paces calls; 0 disables pacing.
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty" validate:"gte=0"`
}

// ChainConfig tunes the densification loop.
type ChainConfig struct {
	Steps            int           `yaml:"steps" validate:"gte=1,lte=10"`
	MinTokens        int           `yaml:"min_tokens" validate:"gte=1"`
	TargetWords      int           `yaml:"target_words" validate:"gte=1"`
	InitialRetries   int           `yaml:"initial_retries" validate:"gte=0"`
	RewriteRetries   int           `yaml:"rewrite_retries" validate:"gte=0"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" validate:"gte=0"`
	TransportRetries int           `yaml:"transport_retries" validate:"gte=0"`
	TransportBackoff time.Duration `yaml:"transport_backoff" validate:"gte=0"`
	TrackEntities    *bool         `yaml:"track_entities,omitempty"`
	MaxArticleChars  int           `yaml:"max_article_chars" validate:"gte=0"`
}

// DatasetConfig is the CSV window used by distil.
type DatasetConfig struct {
	Path   string `yaml:"path,omitempty"`
	Offset int    `yaml:"offset" validate:"gte=0"`
	Limit  int    `yaml:"limit" validate:"gte=0"`
}

// OutputConfig names the output sinks.
type OutputConfig struct {
	JSONL string `yaml:"jsonl,omitempty"`
	// StoreDir is the badger directory; empty keeps chains in memory.
	StoreDir string `yaml:"store_dir,omitempty"`
}

var validate = validator.New()

// Default returns the configuration used when a field is not set.
func Default() Config {
	track := true
	return Config{
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4-0613",
			APIKeyEnv: "OPENAI_API_KEY",
			MaxTokens: 1000,
		},
		Chain: ChainConfig{
			Steps:            3,
			MinTokens:        75,
			TargetWords:      80,
			InitialRetries:   2,
			RewriteRetries:   3,
			TransportRetries: 2,
			TransportBackoff: 60 * time.Second,
			TrackEntities:    &track,
			MaxArticleChars:  12000,
		},
		Dataset: DatasetConfig{
			Offset: 30,
			Limit:  5,
		},
		Output: OutputConfig{
			JSONL: "generated.jsonl",
		},
		ServerAddr: ":8080",
		LogLevel:   "info",
	}
}

// Load reads path over the defaults, resolves the API key from the
// environment when needed, and validates the result. An empty path yields
// the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.resolveAPIKey()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and provider requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.LLM.Provider {
	case "deepseek", "azure":
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("llm provider %s requires base_url", c.LLM.Provider)
		}
	}
	return nil
}

// TrackEntities reports whether dropped-entity tracking is on.
func (c Config) TrackEntities() bool {
	return c.Chain.TrackEntities == nil || *c.Chain.TrackEntities
}

func (c *Config) resolveAPIKey() {
	if c.LLM.APIKey != "" {
		return
	}
	env := c.LLM.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	c.LLM.APIKey = strings.TrimSpace(os.Getenv(env))
}
