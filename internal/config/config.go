package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "PAGEGATE_"
	envCfgFile = "PAGEGATE_CONFIG_FILE"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	LLM       LLMConfig       `koanf:"llm"`
	Judge     JudgeConfig     `koanf:"judge"`
	Audit     AuditConfig     `koanf:"audit"`
	Policy    PolicyConfig    `koanf:"policy"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port" validate:"gte=1,lt=65536"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type LogConfig struct {
	Env   string `koanf:"env" validate:"required,oneof=dev prod"`
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

type DatabaseConfig struct {
	Driver       string        `koanf:"driver" validate:"required,oneof=postgres sqlite"`
	URL          string        `koanf:"url"`
	MaxConns     int           `koanf:"max_conns" validate:"gte=1"`
	MinConns     int           `koanf:"min_conns" validate:"gte=0"`
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"gt=0"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

type AuthConfig struct {
	// APIKeyHeader is consulted when no bearer token is present.
	APIKeyHeader string `koanf:"api_key_header"`
}

type LLMConfig struct {
	OpenAIKey        string `koanf:"openai_key"`
	AnthropicKey     string `koanf:"anthropic_key"`
	OllamaURL        string `koanf:"ollama_url"`
	DefaultProvider  string `koanf:"default_provider" validate:"required,oneof=openai anthropic ollama"`
	FallbackProvider string `koanf:"fallback_provider" validate:"omitempty,oneof=openai anthropic ollama"`
	// FallbackModel replaces the request model when the fallback provider is
	// used. Empty picks the fallback provider's default model.
	FallbackModel string `koanf:"fallback_model"`
	MaxRetries    int    `koanf:"max_retries" validate:"gte=0"`
}

type JudgeConfig struct {
	Model               string        `koanf:"model" validate:"required"`
	Timeout             time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxTokens           int           `koanf:"max_tokens" validate:"gte=1"`
	BodySnippetChars    int           `koanf:"body_snippet_chars" validate:"gte=0"`
	SearchTitleShortcut bool          `koanf:"search_title_shortcut"`
}

type AuditConfig struct {
	Enabled      bool          `koanf:"enabled"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
}

type PolicyConfig struct {
	InfraDomains []string `koanf:"infra_domains"`
}

type RateLimitConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Requests int64         `koanf:"requests" validate:"gte=1"`
	Window   time.Duration `koanf:"window" validate:"gt=0"`
}

// Defaults returns the compiled-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Log: LogConfig{Env: "prod", Level: "info"},
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxConns:     20,
			MinConns:     5,
			QueryTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Auth:  AuthConfig{APIKeyHeader: "X-API-Key"},
		LLM: LLMConfig{
			OllamaURL:       "http://localhost:11434",
			DefaultProvider: "openai",
			MaxRetries:      1,
		},
		Judge: JudgeConfig{
			Model:               "gpt-4o-mini",
			Timeout:             10 * time.Second,
			MaxTokens:           5,
			BodySnippetChars:    1000,
			SearchTitleShortcut: true,
		},
		Audit: AuditConfig{Enabled: true, WriteTimeout: 3 * time.Second},
		Policy: PolicyConfig{
			InfraDomains: []string{
				"accounts.google.com",
				"supabase.co",
				"supabase.com",
				"vercel.app",
				"pagegate.app",
			},
		},
		RateLimit: RateLimitConfig{Requests: 120, Window: time.Minute},
	}
}

// envLoader maps PAGEGATE_GROUP_KEY onto group.key. Swapped in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			if key == "config_file" {
				return "", nil
			}
			key = strings.Replace(key, "_", ".", 1)
			if key == "policy.infra_domains" {
				return key, splitList(value)
			}
			return key, value
		},
	}), nil)
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing precedence, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv(envCfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, envPrefix+"DATABASE_URL")
	}
	for _, provider := range []string{c.LLM.DefaultProvider, c.LLM.FallbackProvider} {
		if key := c.LLM.missingCredential(provider); key != "" && !slices.Contains(missing, key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

// missingCredential names the env var provider needs but lacks, or "".
func (c LLMConfig) missingCredential(provider string) string {
	switch {
	case provider == "openai" && c.OpenAIKey == "":
		return envPrefix + "LLM_OPENAI_KEY"
	case provider == "anthropic" && c.AnthropicKey == "":
		return envPrefix + "LLM_ANTHROPIC_KEY"
	case provider == "ollama" && c.OllamaURL == "":
		return envPrefix + "LLM_OLLAMA_URL"
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}
